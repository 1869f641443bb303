// internal/common/metrics/metrics_test.go
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNotificationCounters(t *testing.T) {
	before := testutil.ToFloat64(NotificationsCreated.WithLabelValues("system_alert"))
	NotificationsCreated.WithLabelValues("system_alert").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsCreated.WithLabelValues("system_alert")))

	NotificationsDropped.WithLabelValues("user_action", StagePersist).Add(2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(NotificationsDropped.WithLabelValues("user_action", StagePersist)), 2.0)
}
