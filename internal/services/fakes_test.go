package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Societyforcis/SCIS-Backend/internal/metrics"
	"github.com/Societyforcis/SCIS-Backend/internal/models"
	"github.com/Societyforcis/SCIS-Backend/internal/repositories"
	"github.com/Societyforcis/SCIS-Backend/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
)

var testNow = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

// fakeStore is an in-memory implementation of every repository interface.
type fakeStore struct {
	mu            sync.Mutex
	seq           int64
	order         map[string]int64
	accounts      map[string]models.Account
	settings      map[string]models.UserSettings
	bookings      map[string]models.Booking
	memberships   map[string]models.Membership
	verifications map[string]models.PaymentVerification
	notifications map[string]models.Notification
	subscribers   map[string]models.Subscriber
	failures      map[string]error
}

var (
	_ repositories.AccountRepository             = (*fakeStore)(nil)
	_ repositories.SettingsRepository            = (*fakeStore)(nil)
	_ repositories.BookingRepository             = (*fakeStore)(nil)
	_ repositories.MembershipRepository          = (*fakeStore)(nil)
	_ repositories.PaymentVerificationRepository = (*fakeStore)(nil)
	_ repositories.NotificationRepository        = (*fakeStore)(nil)
	_ repositories.SubscriberRepository          = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		order:         map[string]int64{},
		accounts:      map[string]models.Account{},
		settings:      map[string]models.UserSettings{},
		bookings:      map[string]models.Booking{},
		memberships:   map[string]models.Membership{},
		verifications: map[string]models.PaymentVerification{},
		notifications: map[string]models.Notification{},
		subscribers:   map[string]models.Subscriber{},
		failures:      map[string]error{},
	}
}

// failOn makes the named method return err until cleared.
func (s *fakeStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *fakeStore) fail(method string) error {
	return s.failures[method]
}

func (s *fakeStore) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

func (s *fakeStore) newer(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return s.order[aID] > s.order[bID]
}

func cloneStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return append([]string(nil), v...)
}

func containsID(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type storeSnapshot struct {
	accounts      map[string]models.Account
	settings      map[string]models.UserSettings
	bookings      map[string]models.Booking
	memberships   map[string]models.Membership
	verifications map[string]models.PaymentVerification
	notifications map[string]models.Notification
	subscribers   map[string]models.Subscriber
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeSnapshot{
		accounts:      copyMap(s.accounts),
		settings:      copyMap(s.settings),
		bookings:      copyMap(s.bookings),
		memberships:   copyMap(s.memberships),
		verifications: copyMap(s.verifications),
		notifications: copyMap(s.notifications),
		subscribers:   copyMap(s.subscribers),
	}
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.settings = snap.settings
	s.bookings = snap.bookings
	s.memberships = snap.memberships
	s.verifications = snap.verifications
	s.notifications = snap.notifications
	s.subscribers = snap.subscribers
}

// fakeTx serializes units of work and rolls the store back on error.
type fakeTx struct {
	mu    sync.Mutex
	store *fakeStore
}

func (t *fakeTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- accounts ---

func (s *fakeStore) CreateAccount(_ context.Context, _ repositories.SQLExecutor, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateAccount"); err != nil {
		return err
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return &repositories.DuplicateKeyError{Constraint: "accounts_email_key"}
		}
	}
	a.CreatedAt, a.UpdatedAt = testNow, testNow
	s.accounts[a.ID] = *a
	s.stamp(a.ID)
	return nil
}

func (s *fakeStore) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (s *fakeStore) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			a := a
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *fakeStore) GetAccountByGoogleID(_ context.Context, googleID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.GoogleID != nil && *a.GoogleID == googleID {
			a := a
			return &a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *fakeStore) UpdateAccount(_ context.Context, _ repositories.SQLExecutor, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateAccount"); err != nil {
		return err
	}
	if _, ok := s.accounts[a.ID]; !ok {
		return repositories.ErrNotFound
	}
	a.UpdatedAt = testNow
	s.accounts[a.ID] = *a
	return nil
}

func (s *fakeStore) DeleteAccount(_ context.Context, _ repositories.SQLExecutor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.settings, id)
	for k, m := range s.memberships {
		if m.UserID != nil && *m.UserID == id {
			m.UserID = nil
			s.memberships[k] = m
		}
	}
	for k, b := range s.bookings {
		if b.UserID != nil && *b.UserID == id {
			b.UserID = nil
			s.bookings[k] = b
		}
	}
	return nil
}

func (s *fakeStore) ListAccounts(_ context.Context, filters models.AccountFilters) ([]models.Account, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Account{}
	q := strings.ToLower(strings.TrimSpace(filters.Search))
	for _, a := range s.accounts {
		if q == "" || strings.Contains(a.Email, q) || strings.Contains(strings.ToLower(a.FirstName), q) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	return out, len(out), nil
}

func (s *fakeStore) ExistingAccountIDs(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := []string{}
	for _, id := range ids {
		if _, ok := s.accounts[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (s *fakeStore) ListRecipients(_ context.Context, ids []string) ([]models.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Recipient{}
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out = append(out, models.Recipient{ID: a.ID, Email: a.Email, FirstName: a.FirstName})
		}
	}
	return out, nil
}

func (s *fakeStore) ListEmailOptInRecipients(_ context.Context) ([]models.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Recipient{}
	for _, a := range s.accounts {
		if st, ok := s.settings[a.ID]; ok && !st.EmailNotifications {
			continue
		}
		out = append(out, models.Recipient{ID: a.ID, Email: a.Email, FirstName: a.FirstName})
	}
	return out, nil
}

func (s *fakeStore) AccountStats(_ context.Context) (*models.AccountStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.AccountStats{}
	for _, a := range s.accounts {
		st.Total++
		if a.IsVerified {
			st.Verified++
		} else {
			st.Unverified++
		}
		if a.IsAdmin {
			st.Admins++
		}
	}
	return st, nil
}

// --- settings ---

func (s *fakeStore) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &st, nil
}

func (s *fakeStore) UpsertSettings(_ context.Context, _ repositories.SQLExecutor, st *models.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UpdatedAt = testNow
	s.settings[st.UserID] = *st
	return nil
}

// --- bookings ---

func (s *fakeStore) CreateBooking(_ context.Context, _ repositories.SQLExecutor, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateBooking"); err != nil {
		return err
	}
	if b.BookingStatus == models.BookingStatusPending {
		for _, existing := range s.bookings {
			if existing.BookingStatus == models.BookingStatusPending && strings.EqualFold(existing.Email, b.Email) {
				return &repositories.DuplicateKeyError{Constraint: "bookings_one_pending_per_email"}
			}
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = testNow
	}
	b.UpdatedAt = b.CreatedAt
	b.Interests = cloneStrings(b.Interests)
	s.bookings[b.ID] = *b
	s.stamp(b.ID)
	return nil
}

func (s *fakeStore) GetBookingByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

func (s *fakeStore) sortedBookings(keep func(models.Booking) bool) []models.Booking {
	out := []models.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt) })
	return out
}

func (s *fakeStore) GetBookings(_ context.Context, filters models.BookingFilters) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedBookings(func(b models.Booking) bool {
		return filters.Status == nil || b.BookingStatus == *filters.Status
	}), nil
}

func (s *fakeStore) GetLatestBookingForUser(_ context.Context, userID string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sortedBookings(func(b models.Booking) bool { return b.UserID != nil && *b.UserID == userID })
	if len(list) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &list[0], nil
}

func (s *fakeStore) GetLatestBookingByEmail(_ context.Context, email string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sortedBookings(func(b models.Booking) bool { return strings.EqualFold(b.Email, email) })
	if len(list) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &list[0], nil
}

func (s *fakeStore) HasPendingBooking(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.BookingStatus == models.BookingStatusPending && strings.EqualFold(b.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) UpdateBookingDecision(_ context.Context, _ repositories.SQLExecutor, b *models.Booking, allowedFrom ...models.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateBookingDecision"); err != nil {
		return err
	}
	current, ok := s.bookings[b.ID]
	if !ok {
		return repositories.ErrStaleState
	}
	if len(allowedFrom) > 0 {
		allowed := false
		for _, st := range allowedFrom {
			if current.BookingStatus == st {
				allowed = true
			}
		}
		if !allowed {
			return repositories.ErrStaleState
		}
	}
	current.BookingStatus = b.BookingStatus
	current.AdminRemarks = b.AdminRemarks
	current.ApprovedBy = b.ApprovedBy
	current.ApprovedAt = b.ApprovedAt
	current.RejectedReason = b.RejectedReason
	current.PaymentStatus = b.PaymentStatus
	current.UpdatedAt = testNow
	s.bookings[b.ID] = current
	return nil
}

func (s *fakeStore) BookingStats(_ context.Context) (*models.BookingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.BookingStats{}
	for _, b := range s.bookings {
		st.Total++
		switch b.BookingStatus {
		case models.BookingStatusPending:
			st.Pending++
		case models.BookingStatusApproved:
			st.Approved++
		case models.BookingStatusRejected:
			st.Rejected++
		}
		if b.PaymentStatus == models.PaymentStatusPaid || b.PaymentStatus == models.PaymentStatusCompleted {
			st.Paid++
		}
	}
	return st, nil
}

// --- memberships ---

func (s *fakeStore) CreateMembership(_ context.Context, _ repositories.SQLExecutor, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateMembership"); err != nil {
		return err
	}
	for _, existing := range s.memberships {
		if existing.MembershipID == m.MembershipID {
			return &repositories.DuplicateKeyError{Constraint: "memberships_membership_id_key"}
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = testNow
	}
	m.UpdatedAt = m.CreatedAt
	m.Interests = cloneStrings(m.Interests)
	s.memberships[m.ID] = *m
	s.stamp(m.ID)
	return nil
}

func (s *fakeStore) GetMembershipByID(_ context.Context, id string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &m, nil
}

func (s *fakeStore) GetMembershipForUpdate(ctx context.Context, _ repositories.SQLExecutor, id string) (*models.Membership, error) {
	return s.GetMembershipByID(ctx, id)
}

func (s *fakeStore) GetMembershipByMembershipID(_ context.Context, membershipID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.MembershipID == membershipID {
			m := m
			return &m, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *fakeStore) sortedMemberships(keep func(models.Membership) bool) []models.Membership {
	out := []models.Membership{}
	for _, m := range s.memberships {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt) })
	return out
}

func (s *fakeStore) GetLatestMembershipForUser(_ context.Context, userID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sortedMemberships(func(m models.Membership) bool { return m.UserID != nil && *m.UserID == userID })
	if len(list) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &list[0], nil
}

func (s *fakeStore) GetLatestMembershipByEmail(_ context.Context, email string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sortedMemberships(func(m models.Membership) bool { return strings.EqualFold(m.Email, email) })
	if len(list) == 0 {
		return nil, repositories.ErrNotFound
	}
	return &list[0], nil
}

func (s *fakeStore) HasActiveMembership(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.Active && strings.EqualFold(m.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) MembershipIDExists(_ context.Context, membershipID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.MembershipID == membershipID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) GetMemberships(_ context.Context, f models.MembershipFilters) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedMemberships(func(m models.Membership) bool {
		return (f.Active == nil || m.Active == *f.Active) &&
			(f.Approved == nil || m.IsAdminApproved == *f.Approved) &&
			(f.MembershipType == nil || m.MembershipType == *f.MembershipType)
	}), nil
}

func (s *fakeStore) UpdateMembership(_ context.Context, _ repositories.SQLExecutor, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateMembership"); err != nil {
		return err
	}
	if _, ok := s.memberships[m.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.UpdatedAt = testNow
	m.Interests = cloneStrings(m.Interests)
	s.memberships[m.ID] = *m
	return nil
}

func (s *fakeStore) DeleteMembership(_ context.Context, _ repositories.SQLExecutor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.memberships, id)
	for k, v := range s.verifications {
		if v.MembershipRef == id {
			delete(s.verifications, k)
		}
	}
	return nil
}

func (s *fakeStore) ExpireMemberships(_ context.Context, _ repositories.SQLExecutor, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, m := range s.memberships {
		if m.Active && m.ExpiryDate != nil && m.ExpiryDate.Before(now) {
			m.Active = false
			s.memberships[k] = m
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) MembershipStats(_ context.Context) (*models.MembershipStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.MembershipStats{ByType: map[string]int{}}
	for _, m := range s.memberships {
		st.Total++
		if m.Active {
			st.Active++
		}
		if m.IsAdminApproved {
			st.Approved++
		} else {
			st.Pending++
		}
		st.ByType[m.MembershipType]++
	}
	return st, nil
}

// --- payment verifications ---

func (s *fakeStore) CreateVerification(_ context.Context, _ repositories.SQLExecutor, v *models.PaymentVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateVerification"); err != nil {
		return err
	}
	for _, existing := range s.verifications {
		if existing.MembershipRef == v.MembershipRef && existing.VerificationStatus != models.VerificationRejected {
			return &repositories.DuplicateKeyError{Constraint: "payment_verifications_one_open"}
		}
	}
	if v.SubmittedAt.IsZero() {
		v.SubmittedAt = testNow
	}
	v.UpdatedAt = v.SubmittedAt
	s.verifications[v.ID] = *v
	s.stamp(v.ID)
	return nil
}

func (s *fakeStore) GetVerificationByID(_ context.Context, id string) (*models.PaymentVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &v, nil
}

func (s *fakeStore) GetVerifications(_ context.Context, f models.VerificationFilters) ([]models.PaymentVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PaymentVerification{}
	for _, v := range s.verifications {
		if (f.Status == nil || v.VerificationStatus == *f.Status) && (f.IsUpgrade == nil || v.IsUpgrade == *f.IsUpgrade) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.newer(out[i].ID, out[i].SubmittedAt, out[j].ID, out[j].SubmittedAt) })
	return out, nil
}

func (s *fakeStore) GetLatestVerificationForMembership(ctx context.Context, ref string) (*models.PaymentVerification, error) {
	all, _ := s.GetVerifications(ctx, models.VerificationFilters{})
	for _, v := range all {
		if v.MembershipRef == ref {
			return &v, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *fakeStore) HasOpenVerification(_ context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.verifications {
		if v.MembershipRef == ref && v.VerificationStatus != models.VerificationRejected {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) UpdateVerificationDecision(_ context.Context, _ repositories.SQLExecutor, v *models.PaymentVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.verifications[v.ID]
	if !ok || current.VerificationStatus != models.VerificationPending {
		return repositories.ErrStaleState
	}
	current.VerificationStatus = v.VerificationStatus
	current.VerifiedBy = v.VerifiedBy
	current.VerifiedAt = v.VerifiedAt
	current.AdminRemarks = v.AdminRemarks
	current.UpdatedAt = testNow
	s.verifications[v.ID] = current
	return nil
}

// --- notifications ---

func (s *fakeStore) CreateNotification(_ context.Context, _ repositories.SQLExecutor, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = testNow
	}
	n.Recipients = cloneStrings(n.Recipients)
	n.ReadBy = cloneStrings(n.ReadBy)
	n.ViewedBy = cloneStrings(n.ViewedBy)
	s.notifications[n.ID] = *n
	s.stamp(n.ID)
	return nil
}

func (s *fakeStore) GetNotificationByID(_ context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &n, nil
}

func (s *fakeStore) sortedNotifications(keep func(models.Notification) bool) []models.Notification {
	out := []models.Notification{}
	for _, n := range s.notifications {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.newer(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt) })
	return out
}

func (s *fakeStore) ListNotificationsForUser(_ context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNotifications(func(n models.Notification) bool { return n.VisibleTo(userID) }), nil
}

func (s *fakeStore) MarkNotificationsViewed(_ context.Context, _ repositories.SQLExecutor, ids []string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		n, ok := s.notifications[id]
		if ok && !containsID(n.ViewedBy, userID) {
			n.ViewedBy = append(cloneStrings(n.ViewedBy), userID)
			s.notifications[id] = n
		}
	}
	return nil
}

func (s *fakeStore) markRead(id, userID string) bool {
	n, ok := s.notifications[id]
	if !ok || containsID(n.ReadBy, userID) {
		return false
	}
	n.ReadBy = append(cloneStrings(n.ReadBy), userID)
	if !containsID(n.ViewedBy, userID) {
		n.ViewedBy = append(cloneStrings(n.ViewedBy), userID)
	}
	s.notifications[id] = n
	return true
}

func (s *fakeStore) MarkNotificationRead(_ context.Context, _ repositories.SQLExecutor, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRead(id, userID), nil
}

func (s *fakeStore) MarkAllNotificationsRead(_ context.Context, _ repositories.SQLExecutor, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.VisibleTo(userID) && s.markRead(id, userID) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.VisibleTo(userID) && !n.IsReadBy(userID) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) ListNotifications(_ context.Context, page, pageSize int) ([]models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedNotifications(func(models.Notification) bool { return true })
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *fakeStore) NotificationStats(_ context.Context) (*models.NotificationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.NotificationStats{ByType: map[string]int{}}
	for _, n := range s.notifications {
		st.Total++
		st.TotalReads += len(n.ReadBy)
		st.TotalViews += len(n.ViewedBy)
		st.ByType[n.Type]++
	}
	return st, nil
}

func (s *fakeStore) DeleteNotification(_ context.Context, _ repositories.SQLExecutor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// --- newsletter ---

func (s *fakeStore) CreateSubscriber(_ context.Context, _ repositories.SQLExecutor, sub *models.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	for _, existing := range s.subscribers {
		if existing.Email == sub.Email {
			return &repositories.DuplicateKeyError{Constraint: "newsletter_subscribers_email_key"}
		}
	}
	sub.Interests = cloneStrings(sub.Interests)
	s.subscribers[sub.ID] = *sub
	s.stamp(sub.ID)
	return nil
}

func (s *fakeStore) GetSubscriberByID(_ context.Context, id string) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &sub, nil
}

func (s *fakeStore) GetSubscriberByEmail(_ context.Context, email string) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		if sub.Email == strings.ToLower(strings.TrimSpace(email)) {
			sub := sub
			return &sub, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *fakeStore) GetSubscribers(_ context.Context, active *bool) ([]models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Subscriber{}
	for _, sub := range s.subscribers {
		if active == nil || sub.IsActive == *active {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	return out, nil
}

func (s *fakeStore) UpdateSubscriber(_ context.Context, _ repositories.SQLExecutor, sub *models.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[sub.ID]; !ok {
		return repositories.ErrNotFound
	}
	sub.Interests = cloneStrings(sub.Interests)
	s.subscribers[sub.ID] = *sub
	return nil
}

func (s *fakeStore) DeleteSubscriber(_ context.Context, _ repositories.SQLExecutor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.subscribers, id)
	return nil
}

func (s *fakeStore) SubscriberStats(_ context.Context) (*models.SubscriberStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.SubscriberStats{ByFrequency: map[string]int{}}
	for _, sub := range s.subscribers {
		st.Total++
		if sub.IsActive {
			st.Active++
		} else {
			st.Inactive++
		}
		st.ByFrequency[sub.Frequency]++
	}
	return st, nil
}

// --- collaborators ---

type recordingSender struct {
	mu   sync.Mutex
	sent []MailMessage
	fail map[string]error
}

func (r *recordingSender) Send(_ context.Context, msg MailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[msg.To]; ok {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) messages() []MailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MailMessage(nil), r.sent...)
}

func (r *recordingSender) to(addr string) []MailMessage {
	var out []MailMessage
	for _, m := range r.messages() {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

type fakeStorage struct {
	mu      sync.Mutex
	err     error
	uploads []string
}

func (f *fakeStorage) Upload(_ context.Context, payload, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, folder)
	return fmt.Sprintf("https://cdn.test/%s/%d.png", folder, len(f.uploads)), nil
}

type fakeGoogle struct {
	identity *ExternalIdentity
	err      error
}

func (f *fakeGoogle) Verify(_ context.Context, credential string) (*ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if credential != "valid-credential" {
		return nil, errors.New("bad credential")
	}
	id := *f.identity
	return &id, nil
}

// testEnv wires every service over one fake store with a fixed clock.
type testEnv struct {
	t          *testing.T
	store      *fakeStore
	tx         *fakeTx
	sender     *recordingSender
	storage    *fakeStorage
	metrics    *metrics.Registry
	dispatcher *Dispatcher
	mail       *MailService
	fees       *FeeTable
	ids        *MembershipIDGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	sender := &recordingSender{fail: map[string]error{}}
	m := metrics.NewRegistry(prometheus.NewRegistry())
	ids := NewMembershipIDGenerator()
	ids.now = func() time.Time { return testNow }
	var suffix atomic.Int64
	ids.suffix = func() int { return 1000 + int(suffix.Add(1)) }
	return &testEnv{
		t:          t,
		store:      store,
		tx:         &fakeTx{store: store},
		sender:     sender,
		storage:    &fakeStorage{},
		metrics:    m,
		dispatcher: NewDispatcher(5 * time.Second),
		mail:       NewMailService(sender, MailConfig{AppName: "SCIS", FrontendURL: "https://scis.test"}, m),
		fees:       DefaultFeeTable(),
		ids:        ids,
	}
}

func fixedClock() time.Time { return testNow }

func (e *testEnv) bookingService() *bookingService {
	svc := NewBookingService(e.store, e.store, e.tx, e.fees, e.ids, e.storage, e.mail, e.dispatcher, e.metrics).(*bookingService)
	svc.now = fixedClock
	return svc
}

func (e *testEnv) paymentService() *paymentService {
	svc := NewPaymentService(e.store, e.store, e.tx, e.fees, e.storage, e.mail, e.dispatcher, e.metrics).(*paymentService)
	svc.now = fixedClock
	return svc
}

func (e *testEnv) membershipService() *membershipService {
	svc := NewMembershipService(e.store, e.fees, e.ids, e.storage, BankDetails{AccountName: "SCIS"}, e.metrics).(*membershipService)
	svc.now = fixedClock
	return svc
}

func (e *testEnv) settingsService() SettingsService {
	return NewSettingsService(e.store, nil)
}

func (e *testEnv) notificationService() *notificationService {
	svc := NewNotificationService(e.store, e.store, e.settingsService(), e.mail, e.dispatcher, e.metrics).(*notificationService)
	svc.now = fixedClock
	return svc
}

func (e *testEnv) newsletterService() *newsletterService {
	svc := NewNewsletterService(e.store, e.mail, e.dispatcher).(*newsletterService)
	svc.now = fixedClock
	return svc
}

func (e *testEnv) authService(google ExternalIdentityVerifier) *authService {
	e.t.Helper()
	tokens, err := utils.NewTokenManager("test-secret-0123456789", time.Hour)
	if err != nil {
		e.t.Fatalf("token manager: %v", err)
	}
	svc := NewAuthService(e.store, tokens, google, e.storage, e.mail, e.dispatcher, e.metrics, AuthConfig{}).(*authService)
	svc.now = fixedClock
	svc.newOTP = func() (string, error) { return "123456", nil }
	return svc
}

func (e *testEnv) adminService() AdminService {
	return NewAdminService(e.store, e.store, e.store, e.store, e.store, "")
}

// addAccount inserts a verified account and returns its id.
func (e *testEnv) addAccount(email string, admin bool) string {
	e.t.Helper()
	a := &models.Account{ID: newID(), Email: email, FirstName: "Test", IsVerified: true, IsAdmin: admin}
	if err := e.store.CreateAccount(context.Background(), nil, a); err != nil {
		e.t.Fatalf("seeding account: %v", err)
	}
	return a.ID
}

func validBookingRequest(email, membershipType string) SubmitBookingRequest {
	return SubmitBookingRequest{
		ApplicantInput: ApplicantInput{
			Title:        "Dr",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			Email:        email,
			Organisation: "Analytical Engines",
			Town:         "London",
			Country:      "UK",
			Status:       "faculty",
			Interests:    []string{"AI", " ", "Security"},
		},
		MembershipType: membershipType,
		PaymentMethod:  models.PaymentMethodBankTransfer,
		PaymentStatus:  models.PaymentStatusPending,
	}
}

var testAdmin = Caller{UserID: "2f1f7f4e-7a52-4a55-9a57-4f8c3a1b2c3d", Email: "admin@scis.test", IsAdmin: true}
