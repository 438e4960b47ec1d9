package services

import (
	"context"
	"testing"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerRequest(email, membershipType string) RegisterMembershipRequest {
	booking := validBookingRequest(email, membershipType)
	return RegisterMembershipRequest{ApplicantInput: booking.ApplicantInput, MembershipType: membershipType}
}

func TestRegisterMembershipStartsInactive(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	caller := memberCaller("direct@example.com")

	m, err := svc.Register(context.Background(), caller, registerRequest("direct@example.com", "professional"))
	require.NoError(t, err)

	assert.Regexp(t, `^SOCCOS-2503-\d{4}$`, m.MembershipID)
	assert.Equal(t, MembershipAcademic, m.MembershipType)
	assert.Equal(t, 500, m.MembershipFee)
	assert.False(t, m.Active)
	assert.False(t, m.IsAdminApproved)
	assert.Nil(t, m.IssueDate)
	assert.Equal(t, models.PaymentMethodBankTransfer, m.PaymentMethod)
	require.NotNil(t, m.UserID)
	assert.Equal(t, caller.UserID, *m.UserID)

	current, err := svc.Current(context.Background(), caller)
	require.NoError(t, err)
	assert.Equal(t, m.ID, current.ID)

	status, err := svc.ApprovalStatus(context.Background(), caller)
	require.NoError(t, err)
	assert.True(t, status.HasMembership)
	assert.False(t, status.IsAdminApproved)
}

func TestRegisterMembershipRejectsActiveMember(t *testing.T) {
	env := newTestEnv(t)
	env.seedMembership("active@example.com", MembershipAcademic, true)

	_, err := env.membershipService().Register(context.Background(), Caller{}, registerRequest("active@example.com", "academic"))
	assert.ErrorIs(t, err, ErrActiveMembershipExists)
}

func TestLookupHidesUnapprovedMemberships(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	pending := env.seedMembership("pending@example.com", MembershipAcademic, false)
	issued := env.seedMembership("issued@example.com", MembershipAcademic, true)

	_, err := svc.Lookup(context.Background(), pending.MembershipID)
	assert.ErrorIs(t, err, ErrMembershipNotFound)

	found, err := svc.Lookup(context.Background(), " "+issued.MembershipID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, found.ID)
}

func TestValidateMembership(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	issued := env.seedMembership("valid@example.com", MembershipAcademic, true)

	v, err := svc.Validate(context.Background(), issued.MembershipID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.Active)

	svc.now = func() time.Time { return issued.ExpiryDate.Add(time.Hour) }
	v, err = svc.Validate(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.False(t, v.Active)

	v, err = svc.Validate(context.Background(), "SOCCOS-0101-0000")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Empty(t, v.MembershipID)
}

func TestApprovalStatusWithoutMembership(t *testing.T) {
	env := newTestEnv(t)
	status, err := env.membershipService().ApprovalStatus(context.Background(), memberCaller("none@example.com"))
	require.NoError(t, err)
	assert.False(t, status.HasMembership)
}

func TestUpdateMembership(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	m := env.seedMembership("edit@example.com", MembershipAcademic, false)

	tier, approved, active := "corporate", true, true
	updated, err := svc.Update(context.Background(), m.ID, testAdmin, UpdateMembershipRequest{
		MembershipType: &tier, IsAdminApproved: &approved, Active: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, MembershipIndustry, updated.MembershipType)
	assert.Equal(t, 750, updated.MembershipFee)
	require.NotNil(t, updated.ApprovedBy)
	assert.Equal(t, testAdmin.UserID, *updated.ApprovedBy)
	require.NotNil(t, updated.IssueDate)
	assert.True(t, updated.IssueDate.Equal(testNow))
	assert.Equal(t, membershipValidity, updated.ExpiryDate.Sub(*updated.IssueDate))

	before := updated.IssueDate.Add(-time.Hour)
	_, err = svc.Update(context.Background(), m.ID, testAdmin, UpdateMembershipRequest{ExpiryDate: &before})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "expiryDate", verr.Fields[0].Field)

	bogus := "gold"
	_, err = svc.Update(context.Background(), m.ID, testAdmin, UpdateMembershipRequest{MembershipType: &bogus})
	assert.ErrorAs(t, err, &verr)
}

func TestDeleteMembershipRemovesVerifications(t *testing.T) {
	env := newTestEnv(t)
	m := env.seedMembership("gone@example.com", MembershipAcademic, false)
	_, err := env.paymentService().SubmitVerification(context.Background(), testAdmin, SubmitVerificationRequest{MembershipID: m.ID})
	require.NoError(t, err)

	svc := env.membershipService()
	require.NoError(t, svc.Delete(context.Background(), m.ID))
	assert.Empty(t, env.store.verifications)
	assert.ErrorIs(t, svc.Delete(context.Background(), m.ID), ErrMembershipNotFound)
}

func TestExpireMemberships(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	lapsed := env.seedMembership("lapsed@example.com", MembershipAcademic, true)
	env.seedMembership("current@example.com", MembershipAcademic, true)

	past := testNow.Add(-time.Hour)
	lapsed.ExpiryDate = &past
	require.NoError(t, env.store.UpdateMembership(context.Background(), nil, lapsed))

	n, err := svc.ExpireMemberships(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MembershipsExpired))

	stored, err := svc.Get(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	n, err = svc.ExpireMemberships(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListMembershipsFilters(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()
	env.seedMembership("a@example.com", MembershipAcademic, true)
	env.seedMembership("b@example.com", MembershipIndustry, false)

	list, err := svc.List(context.Background(), MembershipListFilters{MembershipType: "corporate"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b@example.com", list[0].Email)

	active := true
	list, err = svc.List(context.Background(), MembershipListFilters{Active: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a@example.com", list[0].Email)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByType[MembershipIndustry])
}

func TestFeeSchedule(t *testing.T) {
	env := newTestEnv(t)
	svc := env.membershipService()

	schedule := svc.Fees()
	assert.Equal(t, DefaultCurrency, schedule.Currency)
	assert.Equal(t, 250, schedule.Fees[MembershipStudentUG])
	assert.Equal(t, "SCIS", schedule.Bank.AccountName)

	fee, err := svc.FeeFor("student")
	require.NoError(t, err)
	assert.Equal(t, TierFee{MembershipType: MembershipStudentUG, Fee: 250, Currency: DefaultCurrency}, *fee)

	_, err = svc.FeeFor("vip")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMembershipTypesCatalogue(t *testing.T) {
	env := newTestEnv(t)
	types := env.membershipService().Types()

	assert.Equal(t, DefaultCurrency, types.Currency)
	require.Len(t, types.MembershipTypes, 5)
	assert.Equal(t, MembershipInternational, types.MembershipTypes[4].Value)
	assert.Equal(t, 600, types.MembershipTypes[4].Fee)
	assert.Equal(t, MembershipIndustry, types.Aliases["corporate"])
	assert.Equal(t, MembershipStudentUG, types.Aliases["student"])
}
