package services

import (
	"context"
	"testing"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	env := newTestEnv(t)
	svc := env.newsletterService()

	sub, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "Reader@Example.com", Interests: []string{"ml", " "}})
	require.NoError(t, err)
	env.dispatcher.Wait()

	assert.Equal(t, "reader@example.com", sub.Email)
	assert.Equal(t, models.FrequencyWeekly, sub.Frequency)
	assert.True(t, sub.IsActive)
	assert.Equal(t, []string{"ml"}, []string(sub.Interests))

	mails := env.sender.to("reader@example.com")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Text, "email=reader%40example.com")

	_, err = svc.Subscribe(context.Background(), SubscribeRequest{Email: "reader@example.com"})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestUnsubscribeAndReactivate(t *testing.T) {
	env := newTestEnv(t)
	svc := env.newsletterService()
	sub, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "cycle@example.com", Frequency: models.FrequencyDaily})
	require.NoError(t, err)

	out, err := svc.Unsubscribe(context.Background(), UnsubscribeRequest{Email: "cycle@example.com"})
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	require.NotNil(t, out.UnsubscribedAt)

	again, err := svc.Unsubscribe(context.Background(), UnsubscribeRequest{Email: "cycle@example.com"})
	require.NoError(t, err)
	assert.False(t, again.IsActive)

	back, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "cycle@example.com", Frequency: models.FrequencyMonthly})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, back.ID)
	assert.True(t, back.IsActive)
	assert.Nil(t, back.UnsubscribedAt)
	assert.Equal(t, models.FrequencyMonthly, back.Frequency)

	_, err = svc.Unsubscribe(context.Background(), UnsubscribeRequest{Email: "stranger@example.com"})
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}

func TestSubscriberAdministration(t *testing.T) {
	env := newTestEnv(t)
	svc := env.newsletterService()
	a, err := svc.Subscribe(context.Background(), SubscribeRequest{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Subscribe(context.Background(), SubscribeRequest{Email: "b@example.com"})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.UpdateSubscriber(context.Background(), a.ID, UpdateSubscriberRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.NotNil(t, updated.UnsubscribedAt)

	active := true
	list, err := svc.GetSubscribers(context.Background(), &active)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b@example.com", list[0].Email)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Inactive)

	bad := "hourly"
	_, err = svc.UpdateSubscriber(context.Background(), a.ID, UpdateSubscriberRequest{Frequency: &bad})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, svc.DeleteSubscriber(context.Background(), a.ID))
	_, err = svc.GetSubscriber(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrSubscriberNotFound)
}
