package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func sampleMessage() EmailMessage {
	return EmailMessage{
		To:      "patient@example.com",
		ToName:  "Pat",
		Subject: "Your history",
		Body:    "Attached.",
		Attachments: []Attachment{{
			Filename:    "history.csv",
			ContentType: "text/csv",
			Data:        []byte("Practitioner,Date\n"),
		}},
	}
}

func TestSESSenderBuildsSimpleMessage(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "no-reply@clinic.local"}, logging.Discard())

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "patient@example.com", Subject: "Welcome", Body: "Hello."}))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, "\"Clinic\" <no-reply@clinic.local>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"patient@example.com"}, in.Destination.ToAddresses)

	simple := in.Content.Simple
	require.NotNil(t, simple)
	assert.Equal(t, "Welcome", aws.ToString(simple.Subject.Data))
	assert.Equal(t, "Hello.", aws.ToString(simple.Body.Text.Data))
	assert.Nil(t, simple.Body.Html)
}

func TestSESSenderUsesRawMessageForAttachments(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "no-reply@clinic.local"}, logging.Discard())

	require.NoError(t, sender.Send(context.Background(), sampleMessage()))
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Nil(t, in.Content.Simple)
	require.NotNil(t, in.Content.Raw)

	parsed, err := netmail.ReadMessage(bytes.NewReader(in.Content.Raw.Data))
	require.NoError(t, err)
	assert.Equal(t, "Your history", parsed.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	bodyPart, err := reader.NextPart()
	require.NoError(t, err)
	body, _ := io.ReadAll(bodyPart)
	assert.Equal(t, "Attached.", string(body))

	attPart, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "history.csv", attPart.FileName())
	encoded, _ := io.ReadAll(attPart)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "Practitioner,Date\n", string(decoded))
}

func TestSESSenderPropagatesErrors(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	sender := NewSESSender(client, SESConfig{FromEmail: "a@b.c"}, logging.Discard())

	err := sender.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNilSendersRefuseToSend(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
	assert.Nil(t, NewSendGridSender(SendGridConfig{}, nil))

	var sg *SendGridSender
	assert.Error(t, sg.Send(context.Background(), sampleMessage()))
	var ses *SESSender
	assert.Error(t, ses.Send(context.Background(), sampleMessage()))
}

func TestSendGridMessageCarriesAttachment(t *testing.T) {
	msg := buildSendGridMessage("Clinic", "no-reply@clinic.local", sampleMessage())

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "history.csv", att.Filename)
	assert.Equal(t, "text/csv", att.Type)
	assert.Equal(t, "attachment", att.Disposition)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("Practitioner,Date\n")), att.Content)
	assert.Equal(t, "Your history", msg.Subject)
}

func TestStubSenderRecords(t *testing.T) {
	stub := NewStubEmailSender(logging.Discard())
	for i := 0; i < stubHistory+5; i++ {
		require.NoError(t, stub.Send(context.Background(), EmailMessage{To: "x@y.z"}))
	}
	assert.Len(t, stub.Sent(), stubHistory)
}

func TestNewEmailSenderSelectsProvider(t *testing.T) {
	ctx := context.Background()

	sender, err := NewEmailSender(ctx, config.Config{EmailProvider: "stub"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &StubEmailSender{}, sender)

	sender, err = NewEmailSender(ctx, config.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.key"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, sender)

	_, err = NewEmailSender(ctx, config.Config{EmailProvider: "sendgrid"}, logging.Discard())
	assert.Error(t, err)

	_, err = NewEmailSender(ctx, config.Config{EmailProvider: "pigeon"}, logging.Discard())
	assert.Error(t, err)
}
