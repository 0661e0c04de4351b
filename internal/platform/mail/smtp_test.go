package mail

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 25, FromEmail: "sales@example.com", FromName: "Sales"})

	msg, err := s.Build(Message{
		To:       "client@example.com",
		Subject:  "Quotation PRES-00001",
		TextBody: "Please find the quotation attached.",
		Attachments: []Attachment{
			{FileName: "PRES-00001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Quotation PRES-00001")
	assert.Contains(t, raw, "client@example.com")
	assert.True(t, strings.Contains(raw, "PRES-00001.pdf"))
}

func TestBuildRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", FromEmail: "sales@example.com"})
	_, err := s.Build(Message{To: "not an address", Subject: "x"})
	assert.Error(t, err)
}
