// Package seed loads the demo dormitory into both stores
package seed

// Room is one room of the demo building. Sensor IDs are empty for
// mechanical rooms.
type Room struct {
	ID              string
	Name            string
	Type            string
	ACUnit          string
	TempSensor      string
	OccupancySensor string
	SunFacing       bool
	Profile         string
}

// ACUnit is an air conditioning unit serving a zone of rooms
type ACUnit struct {
	ID       string
	Name     string
	BaseTemp float64
	// SunFactor is added to every reading in the zone
	SunFactor float64
}

const (
	ProfileFullTime   = "Full-time student"
	ProfileNightShift = "Working night student"
)

// ACUnits lists the two cooling zones
var ACUnits = []ACUnit{
	{ID: "ac_unit1", Name: "AC Unit 1", BaseTemp: 22, SunFactor: 2},
	{ID: "ac_unit2", Name: "AC Unit 2", BaseTemp: 20, SunFactor: 0},
}

// Rooms lists six dorms and two mechanical rooms
var Rooms = []Room{
	{ID: "dorm1", Name: "Room 1", Type: "Dorm", ACUnit: "ac_unit1", TempSensor: "temp_sensor1", OccupancySensor: "occ_sensor1", SunFacing: true, Profile: ProfileFullTime},
	{ID: "dorm2", Name: "Room 2", Type: "Dorm", ACUnit: "ac_unit1", TempSensor: "temp_sensor2", OccupancySensor: "occ_sensor2", SunFacing: true, Profile: ProfileFullTime},
	{ID: "dorm3", Name: "Room 3", Type: "Dorm", ACUnit: "ac_unit1", TempSensor: "temp_sensor3", OccupancySensor: "occ_sensor3", SunFacing: true, Profile: ProfileNightShift},
	{ID: "dorm4", Name: "Room 4", Type: "Dorm", ACUnit: "ac_unit2", TempSensor: "temp_sensor4", OccupancySensor: "occ_sensor4", Profile: ProfileNightShift},
	{ID: "dorm5", Name: "Room 5", Type: "Dorm", ACUnit: "ac_unit2", TempSensor: "temp_sensor5", OccupancySensor: "occ_sensor5"},
	{ID: "dorm6", Name: "Room 6", Type: "Dorm", ACUnit: "ac_unit2", TempSensor: "temp_sensor6", OccupancySensor: "occ_sensor6"},
	{ID: "mech1", Name: "Room 7", Type: "Mechanical", ACUnit: "ac_unit1"},
	{ID: "mech2", Name: "Room 8", Type: "Mechanical", ACUnit: "ac_unit2"},
}

// Dorms returns the rooms that carry sensors
func Dorms() []Room {
	var dorms []Room
	for _, r := range Rooms {
		if r.Type == "Dorm" {
			dorms = append(dorms, r)
		}
	}
	return dorms
}

func acUnit(id string) ACUnit {
	for _, u := range ACUnits {
		if u.ID == id {
			return u
		}
	}
	return ACUnit{ID: id}
}

// sensorNumber turns "temp_sensor3" into "3"
func sensorNumber(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] < '0' || id[i] > '9' {
			return id[i+1:]
		}
	}
	return id
}
