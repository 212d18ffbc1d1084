package tracker_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/sessiontrack/pkg/tracker"
)

func TestMapCarrier_IsolatesUserID(t *testing.T) {
	t.Parallel()
	uid := "1"
	c := tracker.NewCarrier(tracker.Attributes{SessionID: "s", UserID: &uid})

	uid = "2"
	assert.Equal(t, "1", *c.Attributes().UserID)

	attrs := c.Attributes()
	*attrs.UserID = "3"
	assert.Equal(t, "1", *c.Attributes().UserID)

	c.SetAttributes(tracker.Attributes{SessionID: "s"})
	assert.Nil(t, c.Attributes().UserID)
}

func TestNewSessionID(t *testing.T) {
	t.Parallel()
	a, b := tracker.NewSessionID(), tracker.NewSessionID()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}
