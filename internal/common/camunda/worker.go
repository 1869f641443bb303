// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/logger"
)

// Registration binds a job type to its handler and worker settings.
type Registration struct {
	TaskType string
	Config   config.WorkerConfig
	Handler  worker.JobHandler
}

// StartWorkers opens a job worker for every enabled registration. The
// returned workers must be closed on shutdown.
func StartWorkers(client zbc.Client, regs []Registration, log logger.Logger) []worker.JobWorker {
	var started []worker.JobWorker
	for _, reg := range regs {
		if !reg.Config.Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": reg.TaskType})
			continue
		}

		jw := client.NewJobWorker().
			JobType(reg.TaskType).
			Handler(reg.Handler).
			MaxJobsActive(reg.Config.MaxJobsActive).
			Timeout(time.Duration(reg.Config.Timeout) * time.Millisecond).
			Open()
		started = append(started, jw)

		log.Info("worker started", map[string]interface{}{
			"taskType":      reg.TaskType,
			"maxJobsActive": reg.Config.MaxJobsActive,
			"timeout_ms":    reg.Config.Timeout,
		})
	}
	return started
}

func StopWorkers(workers []worker.JobWorker) {
	for _, w := range workers {
		w.Close()
	}
}
