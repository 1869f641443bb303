// internal/common/aws/ses_test.go
package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESClient_SendHTML(t *testing.T) {
	api := &mockSES{}
	client := NewSESClientWithAPI(api, "noreply@example.com")

	id, err := client.SendHTML(context.Background(), "user@example.com", "Hello", "<p>Hi</p>", map[string]string{"type": "system_alert"})
	require.NoError(t, err)

	assert.Equal(t, "ses-123", id)
	assert.Equal(t, "noreply@example.com", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"user@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "<p>Hi</p>", aws.ToString(api.input.Message.Body.Html.Data))
	require.Len(t, api.input.Tags, 1)
	assert.Equal(t, "type", aws.ToString(api.input.Tags[0].Name))
}

func TestSESClient_SendHTMLError(t *testing.T) {
	client := NewSESClientWithAPI(&mockSES{err: assert.AnError}, "noreply@example.com")

	_, err := client.SendHTML(context.Background(), "user@example.com", "s", "b", nil)
	assert.ErrorIs(t, err, assert.AnError)
}
