package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ikimina.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var now = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func seedGroup(t *testing.T, s *SQLiteStore) *models.Group {
	t.Helper()
	g := &models.Group{
		ID:                    uuid.New(),
		Name:                  "Twizigamire",
		ContributionAmount:    decimal.NewFromInt(10000),
		ContributionFrequency: models.FrequencyMonthly,
		InterestRate:          decimal.NewFromFloat(5.5),
		Status:                models.GroupStatusActive,
		CreatedBy:             "root",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.CreateGroup(context.Background(), g); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	return g
}

func seedMember(t *testing.T, s *SQLiteStore, groupID uuid.UUID, userID string) *models.Member {
	t.Helper()
	m := &models.Member{
		ID:        uuid.New(),
		UserID:    userID,
		GroupID:   groupID,
		Status:    models.MemberStatusActive,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.CreateMember(context.Background(), m); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	return m
}

func seedLoan(t *testing.T, s Storage, groupID, borrowerID uuid.UUID, principal int64) *models.Loan {
	t.Helper()
	approver := "admin-1"
	loan := &models.Loan{
		ID:             uuid.New(),
		GroupID:        groupID,
		BorrowerID:     borrowerID,
		Principal:      decimal.NewFromInt(principal),
		InterestRate:   decimal.NewFromInt(5),
		DurationMonths: 6,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		TotalPayable:   decimal.NewFromInt(principal).Add(decimal.NewFromInt(principal).Div(decimal.NewFromInt(40))),
		Profit:         decimal.NewFromInt(principal).Div(decimal.NewFromInt(40)),
		Status:         models.LoanStatusActive,
		ApprovedBy:     &approver,
		ApprovedAt:     &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.CreateLoan(context.Background(), loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	return loan
}

func TestSQLiteStore_Groups(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)

	fetched, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("Failed to get group: %v", err)
	}
	if fetched.Name != g.Name || !fetched.InterestRate.Equal(g.InterestRate) || fetched.ContributionFrequency != models.FrequencyMonthly {
		t.Errorf("Expected %+v, got %+v", g, fetched)
	}

	g.Description = "Savings for the Kimironko market vendors"
	g.Status = models.GroupStatusInactive
	if err := s.UpdateGroup(ctx, g); err != nil {
		t.Fatalf("Failed to update group: %v", err)
	}
	fetched, _ = s.GetGroup(ctx, g.ID)
	if fetched.Description != g.Description || fetched.Status != models.GroupStatusInactive {
		t.Errorf("Expected the update to stick, got %+v", fetched)
	}

	groups, err := s.ListGroups(ctx)
	if err != nil || len(groups) != 1 {
		t.Errorf("Expected 1 group, got %d (%v)", len(groups), err)
	}

	missing := &models.Group{ID: uuid.New(), Name: "ghost", Status: models.GroupStatusActive}
	if err := s.UpdateGroup(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetGroup(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_Memberships(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)

	if err := s.UpsertProfile(ctx, &models.Profile{UserID: "user-1", FullName: "Jean Bosco", Phone: "+250788111222", UpdatedAt: now}); err != nil {
		t.Fatalf("Failed to upsert profile: %v", err)
	}
	m := seedMember(t, s, g.ID, "user-1")

	fetched, err := s.GetMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("Failed to get member: %v", err)
	}
	if fetched.FullName != "Jean Bosco" || fetched.Phone != "+250788111222" {
		t.Errorf("Expected the profile to be joined in, got %+v", fetched)
	}

	active, err := s.GetActiveMembership(ctx, "user-1")
	if err != nil || active.ID != m.ID {
		t.Fatalf("Expected the active membership %s, got %v (%v)", m.ID, active, err)
	}

	dup := &models.Member{ID: uuid.New(), UserID: "user-1", GroupID: g.ID, Status: models.MemberStatusActive, JoinedAt: now, UpdatedAt: now}
	if err := s.CreateMember(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for a second active membership, got %v", err)
	}

	m.Status = models.MemberStatusRemoved
	m.UpdatedAt = now.Add(time.Hour)
	if err := s.UpdateMember(ctx, m); err != nil {
		t.Fatalf("Failed to update member: %v", err)
	}
	if _, err := s.GetActiveMembership(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected no active membership, got %v", err)
	}

	// A fresh membership is allowed once the old one is no longer active.
	dup.JoinedAt = now.Add(24 * time.Hour)
	if err := s.CreateMember(ctx, dup); err != nil {
		t.Fatalf("Failed to re-enrol member: %v", err)
	}
	latest, err := s.GetLatestMembership(ctx, "user-1", g.ID)
	if err != nil || latest.ID != dup.ID {
		t.Errorf("Expected the newest membership %s, got %v (%v)", dup.ID, latest, err)
	}

	members, _ := s.ListMembers(ctx, g.ID)
	if len(members) != 2 {
		t.Errorf("Expected 2 memberships, got %d", len(members))
	}
}

func TestSQLiteStore_Roles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.GrantRole(ctx, "root", "super_admin"); err != nil {
			t.Fatalf("Failed to grant role: %v", err)
		}
	}
	roles, err := s.GetUserRoles(ctx, "root")
	if err != nil {
		t.Fatalf("Failed to get roles: %v", err)
	}
	if len(roles) != 1 || roles[0] != "super_admin" {
		t.Errorf("Expected [super_admin], got %v", roles)
	}
	if _, err := s.GetProfile(ctx, "root"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a missing profile, got %v", err)
	}
}

func TestSQLiteStore_Contributions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)
	alice := seedMember(t, s, g.ID, "alice")
	bob := seedMember(t, s, g.ID, "bob")

	for _, m := range []*models.Member{alice, bob} {
		c := &models.Contribution{
			ID:        uuid.New(),
			GroupID:   g.ID,
			MemberID:  m.ID,
			Amount:    decimal.RequireFromString("10000.50"),
			DueDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Status:    models.ContributionStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateContribution(ctx, c); err != nil {
			t.Fatalf("Failed to create contribution: %v", err)
		}
	}

	all, err := s.ListContributions(ctx, g.ID, nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("Expected 2 contributions, got %d (%v)", len(all), err)
	}
	mine, _ := s.ListContributions(ctx, g.ID, &alice.ID)
	if len(mine) != 1 || mine[0].MemberID != alice.ID {
		t.Fatalf("Expected alice's contribution only, got %d", len(mine))
	}

	c := mine[0]
	if !c.Amount.Equal(decimal.RequireFromString("10000.50")) || c.PaidDate != nil {
		t.Errorf("Expected 10000.50 unpaid, got %s / %v", c.Amount, c.PaidDate)
	}

	paid := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	c.Status = models.ContributionStatusPaid
	c.PaidDate = &paid
	if err := s.UpdateContribution(ctx, c); err != nil {
		t.Fatalf("Failed to update contribution: %v", err)
	}
	fetched, _ := s.GetContribution(ctx, c.ID)
	if fetched.Status != models.ContributionStatusPaid || fetched.PaidDate == nil || !fetched.PaidDate.Equal(paid) {
		t.Errorf("Expected paid on 2024-03-04, got %s / %v", fetched.Status, fetched.PaidDate)
	}
}

func TestSQLiteStore_CreateAndGetLoan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)
	m := seedMember(t, s, g.ID, "user-1")
	loan := seedLoan(t, s, g.ID, m.ID, 100000)

	fetched, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if !fetched.Principal.Equal(loan.Principal) || !fetched.TotalPayable.Equal(decimal.NewFromInt(102500)) {
		t.Errorf("Expected principal %s and total 102500, got %s and %s", loan.Principal, fetched.Principal, fetched.TotalPayable)
	}
	if !fetched.DueDate.Equal(loan.DueDate) || fetched.DurationMonths != 6 {
		t.Errorf("Expected due %s over 6 months, got %s over %d", loan.DueDate, fetched.DueDate, fetched.DurationMonths)
	}
	if fetched.ApprovedBy == nil || *fetched.ApprovedBy != "admin-1" || fetched.ApprovedAt == nil {
		t.Errorf("Expected approval fields, got %v / %v", fetched.ApprovedBy, fetched.ApprovedAt)
	}

	fetched.Status = models.LoanStatusCompleted
	if err := s.UpdateLoan(ctx, fetched); err != nil {
		t.Fatalf("Failed to update loan: %v", err)
	}
	loans, _ := s.ListLoans(ctx, g.ID, &m.ID)
	if len(loans) != 1 || loans[0].Status != models.LoanStatusCompleted {
		t.Errorf("Expected one completed loan, got %+v", loans)
	}
	other := uuid.New()
	if loans, _ := s.ListLoans(ctx, g.ID, &other); len(loans) != 0 {
		t.Errorf("Expected no loans for another borrower, got %d", len(loans))
	}
}

func TestSQLiteStore_RepaymentsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)
	m := seedMember(t, s, g.ID, "user-1")
	loan := seedLoan(t, s, g.ID, m.ID, 40000)

	for i, amount := range []string{"15000", "5000.25"} {
		r := &models.Repayment{
			ID:          uuid.New(),
			LoanID:      loan.ID,
			Amount:      decimal.RequireFromString(amount),
			PaymentDate: time.Date(2024, time.Month(2+i), 1, 0, 0, 0, 0, time.UTC),
			Notes:       "mobile money",
			CreatedAt:   now,
		}
		if err := s.CreateRepayment(ctx, r); err != nil {
			t.Fatalf("Failed to create repayment: %v", err)
		}
	}

	repayments, err := s.ListRepayments(ctx, loan.ID)
	if err != nil || len(repayments) != 2 {
		t.Fatalf("Expected 2 repayments, got %d (%v)", len(repayments), err)
	}
	if !repayments[0].Amount.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("Expected the oldest repayment first, got %s", repayments[0].Amount)
	}
	groupRepayments, _ := s.ListGroupRepayments(ctx, g.ID)
	if len(groupRepayments) != 2 {
		t.Errorf("Expected 2 group repayments, got %d", len(groupRepayments))
	}

	if err := s.DeleteLoan(ctx, loan.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}
	if _, err := s.GetLoan(ctx, loan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if repayments, _ := s.ListRepayments(ctx, loan.ID); len(repayments) != 0 {
		t.Errorf("Expected repayments to go with the loan, got %d", len(repayments))
	}
	if err := s.DeleteLoan(ctx, loan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSQLiteStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)
	m := seedMember(t, s, g.ID, "user-1")

	boom := errors.New("boom")
	var loanID uuid.UUID
	err := s.InTx(ctx, func(tx Storage) error {
		loanID = seedLoan(t, tx, g.ID, m.ID, 1000).ID
		if _, err := tx.GetLoan(ctx, loanID); err != nil {
			t.Errorf("Expected the loan to be visible inside the transaction, got %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}
	if _, err := s.GetLoan(ctx, loanID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected the loan to be rolled back, got %v", err)
	}

	err = s.InTx(ctx, func(tx Storage) error {
		loanID = seedLoan(t, tx, g.ID, m.ID, 1000).ID
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		t.Errorf("Expected the committed loan, got %v", err)
	}
}

func TestSQLiteStore_Announcements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := seedGroup(t, s)

	post := &models.Announcement{ID: uuid.New(), GroupID: &g.ID, AuthorID: "admin-1", Title: "Meeting", Body: "Saturday", CreatedAt: now}
	notice := &models.Announcement{ID: uuid.New(), AuthorID: "root", Title: "Maintenance", Body: "Sunday", CreatedAt: now}
	for _, a := range []*models.Announcement{post, notice} {
		if err := s.CreateAnnouncement(ctx, a); err != nil {
			t.Fatalf("Failed to create announcement: %v", err)
		}
	}

	groupPosts, _ := s.ListAnnouncements(ctx, &g.ID)
	if len(groupPosts) != 1 || groupPosts[0].GroupID == nil || *groupPosts[0].GroupID != g.ID {
		t.Errorf("Expected the group post only, got %+v", groupPosts)
	}
	notices, _ := s.ListAnnouncements(ctx, nil)
	if len(notices) != 1 || notices[0].GroupID != nil {
		t.Errorf("Expected the notice only, got %+v", notices)
	}

	c := &models.Comment{ID: uuid.New(), AnnouncementID: post.ID, AuthorID: "user-1", Body: "See you there", CreatedAt: now}
	if err := s.CreateComment(ctx, c); err != nil {
		t.Fatalf("Failed to create comment: %v", err)
	}
	comments, err := s.ListComments(ctx, post.ID)
	if err != nil || len(comments) != 1 || comments[0].Body != "See you there" {
		t.Errorf("Expected 1 comment, got %+v (%v)", comments, err)
	}
	if _, err := s.GetAnnouncement(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ikimina.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	g := seedGroup(t, s)
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()
	if _, err := s.GetGroup(context.Background(), g.ID); err != nil {
		t.Errorf("Expected the group to survive a reopen, got %v", err)
	}
}

func TestWithDefaultParams(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ikimina.db", "ikimina.db?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"},
		{"file:x.db?cache=shared", "file:x.db?cache=shared&_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"},
		{"x.db?_busy_timeout=100", "x.db?_busy_timeout=100&_txlock=immediate&_foreign_keys=on"},
		{"x.db?_txlock=deferred&_foreign_keys=off&_busy_timeout=1", "x.db?_txlock=deferred&_foreign_keys=off&_busy_timeout=1"},
	}
	for _, tc := range cases {
		if got := withDefaultParams(tc.in); got != tc.want {
			t.Errorf("withDefaultParams(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSQLiteStore_EmptyListsAreNotNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	groups, err := s.ListGroups(ctx)
	if err != nil || groups == nil {
		t.Errorf("Expected an empty group list, got %v, %v", groups, err)
	}
	roles, err := s.GetUserRoles(ctx, "nobody")
	if err != nil || roles == nil {
		t.Errorf("Expected an empty role list, got %v, %v", roles, err)
	}

	g := seedGroup(t, s)
	members, err := s.ListMembers(ctx, g.ID)
	if err != nil || members == nil {
		t.Errorf("Expected an empty member list, got %v, %v", members, err)
	}
	contributions, err := s.ListContributions(ctx, g.ID, nil)
	if err != nil || contributions == nil {
		t.Errorf("Expected an empty contribution list, got %v, %v", contributions, err)
	}
	loans, err := s.ListLoans(ctx, g.ID, nil)
	if err != nil || loans == nil {
		t.Errorf("Expected an empty loan list, got %v, %v", loans, err)
	}
	repayments, err := s.ListGroupRepayments(ctx, g.ID)
	if err != nil || repayments == nil {
		t.Errorf("Expected an empty repayment list, got %v, %v", repayments, err)
	}
	announcements, err := s.ListAnnouncements(ctx, &g.ID)
	if err != nil || announcements == nil {
		t.Errorf("Expected an empty announcement list, got %v, %v", announcements, err)
	}
	comments, err := s.ListComments(ctx, uuid.New())
	if err != nil || comments == nil {
		t.Errorf("Expected an empty comment list, got %v, %v", comments, err)
	}
}
