package logsource

import "github.com/docker/docker/api/types"

func swarmInspectOptions() types.ServiceInspectOptions {
	return types.ServiceInspectOptions{}
}
