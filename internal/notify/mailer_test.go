package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionMessage(t *testing.T) {
	subject, body := completionMessage(CompletionMail{
		Email:   "ada@campus.edu",
		Name:    "Ada Obi",
		OrderID: "5f1c7a54-9f6d-4f1e-8c3a-000000000001",
	})
	assert.Equal(t, "Your laundry order has been completed!", subject)
	assert.Contains(t, body, "Hi Ada Obi,")
	assert.Contains(t, body, "#5f1c7a54")
	assert.False(t, strings.Contains(body, "9f6d"), "order id must be truncated")
}

func TestCompletionMessageNameFallback(t *testing.T) {
	_, body := completionMessage(CompletionMail{OrderID: "abc"})
	assert.Contains(t, body, "Hi Student,")
	assert.Contains(t, body, "#abc")
}
