// internal/workers/notification/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/notification"
)

const TaskType = "send-notification"

type Sender interface {
	Send(ctx context.Context, userID string, t notification.Type, data map[string]interface{}, opts ...notification.SendOption) error
	SendBulk(ctx context.Context, items []notification.BulkItem)
}

type Handler struct {
	config       *Config
	sender       Sender
	schemas      *validation.Schemas
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, sender Sender, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	schemas := validation.NewSchemas()
	if err := schemas.Register(TaskType, inputSchema); err != nil {
		return nil, err
	}

	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		sender:       sender,
		schemas:      schemas,
		errorHandler: apperrors.NewErrorHandler(l),
		obs:          obs,
		logger:       l,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parse(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) parse(variables string) (*Input, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &doc); err != nil {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}
	if err := h.schemas.ValidateOrError(TaskType, doc); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// execute reports "accepted" once the sends ran: persistence and delivery
// failures are absorbed by the service.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Items) > 0 {
		for i, item := range input.Items {
			if !item.Type.Valid() {
				return nil, apperrors.NewValidationFailedError(
					fmt.Sprintf("items[%d]: unknown notification type %q", i, item.Type))
			}
		}
		h.sender.SendBulk(ctx, input.Items)
		return &Output{Status: StatusAccepted, Count: len(input.Items)}, nil
	}

	err := h.sender.Send(ctx, input.UserID, notification.Type(input.Type), input.Data,
		notification.WithOrganization(input.OrganizationID))
	if err != nil {
		return nil, err
	}
	return &Output{Status: StatusAccepted, Count: 1}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJob(ctx, TaskType, "completed", time.Since(start))
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	code := apperrors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.obs.RecordJob(ctx, TaskType, "failed", time.Since(start))
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
