// internal/workers/notification/dispatch-event/handler.go
package dispatchevent

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
	"notification-workers/internal/triggers"
)

const TaskType = "dispatch-notification-event"

type Triggers interface {
	OnUserRegistration(ctx context.Context, user triggers.User) error
	OnSubscriptionChange(ctx context.Context, sub triggers.Subscription, change triggers.SubscriptionChange) error
	OnOrganizationInvite(ctx context.Context, invitedUserID string, org triggers.Organization, inviterName, role string) error
	OnSecurityEvent(ctx context.Context, userID, eventType string, eventData map[string]interface{}) error
	OnBillingEvent(ctx context.Context, invoice triggers.Invoice, event triggers.BillingEvent) error
	OnSystemMaintenance(ctx context.Context, message string, start, end time.Time, affectedServices []string) error
}

type Handler struct {
	config       *Config
	triggers     Triggers
	schemas      *validation.Schemas
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandler(config *Config, t Triggers, obs *observability.Observability, log logger.Logger) (*Handler, error) {
	schemas := validation.NewSchemas()
	for event, schema := range payloadSchemas {
		if err := schemas.Register(event, schema); err != nil {
			return nil, err
		}
	}

	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		triggers:     t,
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

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err)), start)
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(ctx, client, job, output, start)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if _, ok := payloadSchemas[input.Event]; !ok {
		return nil, apperrors.NewInvalidEventTypeError("dispatch", input.Event)
	}

	var doc interface{}
	if len(input.Payload) > 0 {
		if err := json.Unmarshal(input.Payload, &doc); err != nil {
			return nil, apperrors.NewValidationFailedError(fmt.Sprintf("parse payload: %v", err))
		}
	}
	if err := h.schemas.ValidateOrError(input.Event, doc); err != nil {
		return nil, err
	}

	if err := h.route(ctx, input.Event, input.Payload); err != nil {
		return nil, err
	}

	h.logger.Debug("event dispatched", map[string]interface{}{"event": input.Event})
	return &Output{Status: StatusDispatched, Event: input.Event}, nil
}

func (h *Handler) route(ctx context.Context, event string, raw json.RawMessage) error {
	switch event {
	case EventUserRegistration:
		var p userRegistrationPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnUserRegistration(ctx, p.User)

	case EventSubscriptionChange:
		var p subscriptionChangePayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnSubscriptionChange(ctx, p.Subscription, p.ChangeType)

	case EventOrganizationInvite:
		var p organizationInvitePayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnOrganizationInvite(ctx, p.InvitedUserID, p.Organization, p.InviterName, p.Role)

	case EventSecurityEvent:
		var p securityEventPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnSecurityEvent(ctx, p.UserID, p.EventType, p.EventData)

	case EventBillingEvent:
		var p billingEventPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnBillingEvent(ctx, p.Invoice, p.EventType)

	case EventSystemMaintenance:
		var p systemMaintenancePayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return h.triggers.OnSystemMaintenance(ctx, p.Message, p.StartTime, p.EndTime, p.AffectedServices)
	}
	return apperrors.NewInvalidEventTypeError("dispatch", event)
}

func decode(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewValidationFailedError(fmt.Sprintf("decode payload: %v", err))
	}
	return nil
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
