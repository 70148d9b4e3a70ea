package seed

import (
	"context"
	"fmt"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

// GraphWriter runs write statements against the graph store
type GraphWriter interface {
	Exec(ctx context.Context, cypher string, params map[string]interface{}) error
}

// Statement is one parameterized write
type Statement struct {
	Name   string
	Cypher string
	Params map[string]interface{}
}

// GraphStatements returns the writes that rebuild the dormitory graph from
// scratch. The first statement deletes every existing node.
func GraphStatements() []Statement {
	var rooms, units, temps, occs, profileLinks, tempProfileLinks []map[string]interface{}

	for _, u := range ACUnits {
		units = append(units, map[string]interface{}{"id": u.ID, "name": u.Name})
	}

	for _, r := range Rooms {
		rooms = append(rooms, map[string]interface{}{
			"id": r.ID, "name": r.Name, "type": r.Type, "ac_unit": r.ACUnit,
		})
		if r.Type != "Dorm" {
			continue
		}

		n := sensorNumber(r.TempSensor)
		temps = append(temps, map[string]interface{}{
			"id": r.TempSensor, "label": "Temp Sensor " + n, "room": r.ID, "ac_unit": r.ACUnit,
		})
		occs = append(occs, map[string]interface{}{
			"id": r.OccupancySensor, "label": "Occupancy Sensor " + sensorNumber(r.OccupancySensor), "room": r.ID,
		})
		if r.Profile != "" {
			profileLinks = append(profileLinks, map[string]interface{}{"sensor": r.OccupancySensor, "profile": r.Profile})
		}

		tempProfile := "Shaded rooms"
		if r.SunFacing {
			tempProfile = "Sun-facing rooms"
		}
		tempProfileLinks = append(tempProfileLinks, map[string]interface{}{"room": r.ID, "profile": tempProfile})
	}

	return []Statement{
		{Name: "clear", Cypher: `MATCH (n) DETACH DELETE n`},
		{
			Name:   "rooms",
			Cypher: `UNWIND $rows AS row CREATE (:Room {id: row.id, name: row.name, type: row.type})`,
			Params: map[string]interface{}{"rows": rooms},
		},
		{
			Name:   "ac units",
			Cypher: `UNWIND $rows AS row CREATE (:AirConditioningUnit {id: row.id, name: row.name})`,
			Params: map[string]interface{}{"rows": units},
		},
		{
			Name: "services",
			Cypher: `UNWIND $rows AS row
MATCH (ac:AirConditioningUnit {id: row.ac_unit}), (r:Room {id: row.id})
WHERE r.type = 'Dorm'
CREATE (ac)-[:SERVICES]->(r)`,
			Params: map[string]interface{}{"rows": rooms},
		},
		{
			Name: "temperature sensors",
			Cypher: `UNWIND $rows AS row
MATCH (r:Room {id: row.room}), (ac:AirConditioningUnit {id: row.ac_unit})
CREATE (s:TemperatureSensor {id: row.id, label: row.label})
CREATE (r)-[:MONITORS]->(s)
CREATE (s)-[:SERVICES_AC_UNIT]->(ac)`,
			Params: map[string]interface{}{"rows": temps},
		},
		{
			Name: "occupancy sensors",
			Cypher: `UNWIND $rows AS row
MATCH (r:Room {id: row.room})
CREATE (s:OccupancySensor {id: row.id, label: row.label})
CREATE (r)-[:MEASURES]->(s)`,
			Params: map[string]interface{}{"rows": occs},
		},
		{
			Name:   "occupancy profiles",
			Cypher: `UNWIND $rows AS row CREATE (:OccupancyProfile {name: row.name, schedule: row.schedule})`,
			Params: map[string]interface{}{"rows": []map[string]interface{}{
				{"name": ProfileFullTime, "schedule": "7-9am, 1-3pm, 8-10pm, night"},
				{"name": ProfileNightShift, "schedule": "6-8am, 4-6pm, 9-11pm, night"},
			}},
		},
		{
			Name: "occupancy profile links",
			Cypher: `UNWIND $rows AS row
MATCH (s:OccupancySensor {id: row.sensor}), (p:OccupancyProfile {name: row.profile})
CREATE (s)-[:HAS_PROFILE]->(p)`,
			Params: map[string]interface{}{"rows": profileLinks},
		},
		{
			Name:   "temperature profiles",
			Cypher: `UNWIND $rows AS row CREATE (:TemperatureProfile {name: row.name, tempDifference: row.diff})`,
			Params: map[string]interface{}{"rows": []map[string]interface{}{
				{"name": "Sun-facing rooms", "diff": "2-4°C warmer"},
				{"name": "Shaded rooms", "diff": "cooler"},
			}},
		},
		{
			Name: "temperature profile links",
			Cypher: `UNWIND $rows AS row
MATCH (r:Room {id: row.room}), (p:TemperatureProfile {name: row.profile})
CREATE (r)-[:HAS_TEMP_PROFILE]->(p)`,
			Params: map[string]interface{}{"rows": tempProfileLinks},
		},
	}
}

// SeedGraph replaces the graph store contents with the dormitory
func SeedGraph(ctx context.Context, g GraphWriter, logger *observability.Logger) error {
	for _, st := range GraphStatements() {
		if err := g.Exec(ctx, st.Cypher, st.Params); err != nil {
			return fmt.Errorf("seed graph %s: %w", st.Name, err)
		}
		logger.Debug(ctx, "Seeded graph step", map[string]interface{}{"step": st.Name})
	}
	logger.Info(ctx, "Graph seeded", map[string]interface{}{
		"rooms":    len(Rooms),
		"ac_units": len(ACUnits),
	})
	return nil
}
