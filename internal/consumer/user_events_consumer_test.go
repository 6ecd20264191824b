package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/internal/dto"
	"github.com/zonelab/geozone/internal/service"
	"github.com/zonelab/geozone/pkg/retry"
)

type stubZoneService struct {
	service.ZoneService
	deactivated []*dto.UserDeactivatedEvent
	err         error
}

func (s *stubZoneService) HandleUserDeactivated(ctx context.Context, event *dto.UserDeactivatedEvent) error {
	s.deactivated = append(s.deactivated, event)
	return s.err
}

type stubUserService struct {
	service.UserService
	synced []*domain.User
	err    error
}

func (s *stubUserService) SyncUser(ctx context.Context, user *domain.User) error {
	s.synced = append(s.synced, user)
	return s.err
}

func newTestConsumer(zones *stubZoneService, users *stubUserService) *UserEventsConsumer {
	return &UserEventsConsumer{
		zoneService: zones,
		userService: users,
	}
}

func record(topic string, value string) *kgo.Record {
	return &kgo.Record{Topic: topic, Value: []byte(value)}
}

func TestProcessRecord_Deactivated(t *testing.T) {
	zones := &stubZoneService{}
	c := newTestConsumer(zones, &stubUserService{})

	err := c.processRecord(context.Background(),
		record(TopicUserDeactivated, `{"user_id":"u1","successor_id":"u2","reason":"left"}`))

	require.NoError(t, err)
	require.Len(t, zones.deactivated, 1)
	assert.Equal(t, "u1", zones.deactivated[0].UserID)
	assert.Equal(t, "u2", zones.deactivated[0].SuccessorID)
}

func TestProcessRecord_UnknownSuccessorStaysRetryable(t *testing.T) {
	// The successor's upsert event may land after the deactivation; the
	// error must propagate so the offset is not committed and redelivery
	// can succeed later
	zones := &stubZoneService{err: domain.ErrUserNotFound}
	c := newTestConsumer(zones, &stubUserService{})

	err := c.processRecord(context.Background(),
		record(TopicUserDeactivated, `{"user_id":"u1","successor_id":"u-future"}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	var perm *retry.PermanentError
	assert.False(t, errors.As(err, &perm))
}

func TestProcessRecord_MalformedPayloadIsPermanent(t *testing.T) {
	c := newTestConsumer(&stubZoneService{}, &stubUserService{})

	for _, value := range []string{`not json`, `{}`} {
		err := c.processRecord(context.Background(), record(TopicUserDeactivated, value))

		require.Error(t, err, "value=%q", value)
		var perm *retry.PermanentError
		assert.True(t, errors.As(err, &perm), "value=%q", value)
	}
}

func TestProcessRecord_Upserted(t *testing.T) {
	users := &stubUserService{}
	c := newTestConsumer(&stubZoneService{}, users)

	err := c.processRecord(context.Background(),
		record(TopicUserUpserted, `{"user_id":"u1","display_name":"Sam","roles":["admin"],"active":true}`))

	require.NoError(t, err)
	require.Len(t, users.synced, 1)
	assert.Equal(t, "u1", users.synced[0].ID)
	assert.Equal(t, "Sam", users.synced[0].DisplayName)
	assert.Equal(t, []string{"admin"}, users.synced[0].Roles)
	assert.True(t, users.synced[0].Active)
}

func TestProcessRecord_UnknownTopicIgnored(t *testing.T) {
	zones := &stubZoneService{}
	users := &stubUserService{}
	c := newTestConsumer(zones, users)

	err := c.processRecord(context.Background(), record("identity.other", `{}`))

	require.NoError(t, err)
	assert.Empty(t, zones.deactivated)
	assert.Empty(t, users.synced)
}
