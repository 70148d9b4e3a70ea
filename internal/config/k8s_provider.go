package config

import (
	"context"
	"os"
)

// K8sProvider is a FileProvider that only answers inside a pod, where the
// kubelet sets KUBERNETES_SERVICE_HOST and mounts the twin-query secret.
type K8sProvider struct {
	*FileProvider
}

// NewK8sProvider reads the secret mount at dir, DefaultSecretsDir when empty
func NewK8sProvider(dir string) *K8sProvider {
	if dir == "" {
		dir = DefaultSecretsDir
	}
	return &K8sProvider{FileProvider: NewFileProvider(dir)}
}

func (k *K8sProvider) Name() string {
	return "kubernetes"
}

func (k *K8sProvider) IsAvailable(ctx context.Context) bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		return false
	}
	return k.FileProvider.IsAvailable(ctx)
}
