package team_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/teamtasks/internal/apperr"
	"github.com/nhle/teamtasks/internal/model"
	"github.com/nhle/teamtasks/internal/notify"
	"github.com/nhle/teamtasks/internal/store"
	"github.com/nhle/teamtasks/internal/team"
	"github.com/nhle/teamtasks/tests/testutil"
)

var (
	alice = testutil.Alice
	bob   = testutil.Bob
	carol = testutil.Carol
)

type fixture struct {
	store  store.Store
	sender *testutil.RecordingSender
	mgr    *team.Manager
}

func newFixture(t *testing.T, policy team.Policy) *fixture {
	t.Helper()
	s := testutil.NewTestStore(t)
	sender := &testutil.RecordingSender{}
	d := notify.NewDispatcher(s, nil, sender, nil)
	return &fixture{
		store:  s,
		sender: sender,
		mgr: team.NewManager(s, d, team.Options{
			Policy:   policy,
			SiteName: "Team Tasks",
			AppURL:   "https://tasks.example.com",
		}),
	}
}

func connect(t *testing.T, f *fixture, from, to model.Identity) *model.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := f.mgr.Invite(ctx, from, to.Email)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	conn, err = f.mgr.Respond(ctx, conn.ID, to, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	return conn
}

func TestInviteTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()

	if _, err := f.mgr.Invite(ctx, alice, bob.Email); err != nil {
		t.Fatalf("first Invite: %v", err)
	}
	_, err := f.mgr.Invite(ctx, alice, "BOB@x.com")
	if !errors.Is(err, apperr.ErrDuplicateInvite) {
		t.Fatalf("second Invite err = %v, want ErrDuplicateInvite", err)
	}

	pending, _ := f.mgr.ListPendingOutgoing(ctx, alice)
	if len(pending) != 1 {
		t.Errorf("outgoing pending = %d, want 1", len(pending))
	}
}

func TestInviteValidation(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()

	for _, email := range []string{"", "   ", "not-an-email", alice.Email} {
		_, err := f.mgr.Invite(ctx, alice, email)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Invite(%q) err = %v, want ErrValidation", email, err)
		}
	}
	if got := len(f.sender.Sent()); got != 0 {
		t.Errorf("sent %d emails for rejected invites", got)
	}
}

func TestInviteSendsEmail(t *testing.T) {
	f := newFixture(t, team.Policy{})

	conn, err := f.mgr.Invite(context.Background(), alice, "Bob <bob@x.com>")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if conn.RecipientEmail != bob.Email {
		t.Errorf("recipient = %q, want %q", conn.RecipientEmail, bob.Email)
	}

	sent := f.sender.SentTo(bob.Email)
	if len(sent) != 1 {
		t.Fatalf("emails to bob = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Subject, alice.Email) {
		t.Errorf("subject %q does not name the requester", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Text, "https://tasks.example.com") {
		t.Error("invite text is missing the app link")
	}
}

func TestInviteEmailFailureKeepsConnection(t *testing.T) {
	s := testutil.NewTestStore(t)
	core, logs := observer.New(zapcore.WarnLevel)
	sender := &testutil.RecordingSender{Err: errors.New("smtp down")}
	mgr := team.NewManager(s, notify.NewDispatcher(s, nil, sender, zap.New(core)), team.Options{})

	conn, err := mgr.Invite(context.Background(), alice, bob.Email)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := s.GetConnectionByID(context.Background(), conn.ID); err != nil {
		t.Errorf("connection missing after email failure: %v", err)
	}
	if logs.FilterMessage("sending email failed").Len() != 1 {
		t.Error("email failure was not logged")
	}
}

func TestInviteStoreFailureIsDependency(t *testing.T) {
	s := &testutil.FlakyStore{Store: testutil.NewTestStore(t), FailCreateConnection: true}
	sender := &testutil.RecordingSender{}
	mgr := team.NewManager(s, notify.NewDispatcher(s, nil, sender, nil), team.Options{})

	_, err := mgr.Invite(context.Background(), alice, bob.Email)
	if !errors.Is(err, apperr.ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	if len(sender.Sent()) != 0 {
		t.Error("invite email sent although the connection was not stored")
	}
}

func TestAcceptMakesBothTeammates(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()

	conn, err := f.mgr.Invite(ctx, alice, bob.Email)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if conn.Status != model.ConnectionPending || conn.RequesterID != alice.ID {
		t.Fatalf("created %s by %s, want pending by alice", conn.Status, conn.RequesterID)
	}

	incoming, err := f.mgr.ListPendingIncoming(ctx, bob)
	if err != nil {
		t.Fatalf("ListPendingIncoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].ID != conn.ID {
		t.Fatalf("bob incoming = %+v, want the invite", incoming)
	}

	resolved, err := f.mgr.Respond(ctx, conn.ID, bob, true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resolved.Status != model.ConnectionAccepted || resolved.Recipient().ID != bob.ID {
		t.Errorf("resolved = %s/%s", resolved.Status, resolved.Recipient().ID)
	}

	aliceTeam, _ := f.mgr.ListTeamMembers(ctx, alice)
	if len(aliceTeam) != 1 || aliceTeam[0].ID != bob.ID || aliceTeam[0].Email != bob.Email {
		t.Errorf("alice team = %+v, want bob once", aliceTeam)
	}
	bobTeam, _ := f.mgr.ListTeamMembers(ctx, bob)
	if len(bobTeam) != 1 || bobTeam[0].ID != alice.ID {
		t.Errorf("bob team = %+v, want alice once", bobTeam)
	}

	if incoming, _ := f.mgr.ListPendingIncoming(ctx, bob); len(incoming) != 0 {
		t.Errorf("bob still has %d pending invites", len(incoming))
	}

	notes, err := f.store.GetNotifications(ctx, store.NotificationFilter{UserID: alice.ID})
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != model.NotificationConnectionAccepted {
		t.Fatalf("alice notifications = %+v, want one connection_accepted", notes)
	}
	if notes[0].Payload["connection_id"] != conn.ID {
		t.Errorf("payload = %v", notes[0].Payload)
	}
}

func TestMutualConnectionsListedOnce(t *testing.T) {
	f := newFixture(t, team.Policy{})
	connect(t, f, alice, bob)
	connect(t, f, bob, alice)

	members, err := f.mgr.ListTeamMembers(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListTeamMembers: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("alice team = %+v, want bob once", members)
	}
}

func TestRespondOnResolvedConnectionIsInvalidTransition(t *testing.T) {
	for _, first := range []bool{true, false} {
		f := newFixture(t, team.Policy{})
		ctx := context.Background()

		conn, err := f.mgr.Invite(ctx, alice, bob.Email)
		if err != nil {
			t.Fatalf("Invite: %v", err)
		}
		if _, err := f.mgr.Respond(ctx, conn.ID, bob, first); err != nil {
			t.Fatalf("Respond: %v", err)
		}

		for _, again := range []bool{true, false} {
			for _, who := range []model.Identity{bob, carol} {
				_, err := f.mgr.Respond(ctx, conn.ID, who, again)
				if !errors.Is(err, apperr.ErrInvalidTransition) {
					t.Errorf("first=%v again=%v by %s: err = %v, want ErrInvalidTransition",
						first, again, who.Email, err)
				}
			}
		}
	}
}

func TestRejectDoesNotConnect(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()

	conn, _ := f.mgr.Invite(ctx, alice, bob.Email)
	if _, err := f.mgr.Respond(ctx, conn.ID, bob, false); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if members, _ := f.mgr.ListTeamMembers(ctx, alice); len(members) != 0 {
		t.Errorf("alice team = %+v, want empty", members)
	}
	notes, _ := f.store.GetNotifications(ctx, store.NotificationFilter{UserID: alice.ID})
	if len(notes) != 0 {
		t.Errorf("reject produced %d notifications", len(notes))
	}
}

func TestRespondErrors(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()

	if _, err := f.mgr.Respond(ctx, "missing", bob, true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}

	conn, _ := f.mgr.Invite(ctx, alice, bob.Email)
	if _, err := f.mgr.Respond(ctx, conn.ID, carol, true); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("carol err = %v, want ErrForbidden", err)
	}
	if _, err := f.mgr.Respond(ctx, conn.ID, alice, true); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("requester err = %v, want ErrForbidden", err)
	}

	// Still pending for bob.
	if _, err := f.mgr.Respond(ctx, conn.ID, model.Identity{ID: bob.ID, Email: "Bob@X.com"}, true); err != nil {
		t.Errorf("bob Respond: %v", err)
	}
}

func TestReinviteAfterReject(t *testing.T) {
	tests := []struct {
		name    string
		policy  team.Policy
		wantErr error
	}{
		{"blocked by default", team.Policy{}, apperr.ErrDuplicateInvite},
		{"allowed by policy", team.Policy{AllowReinviteAfterReject: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.policy)
			ctx := context.Background()

			conn, _ := f.mgr.Invite(ctx, alice, bob.Email)
			if _, err := f.mgr.Respond(ctx, conn.ID, bob, false); err != nil {
				t.Fatalf("Respond: %v", err)
			}

			_, err := f.mgr.Invite(ctx, alice, bob.Email)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("reinvite: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("reinvite err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAcceptedInviteStaysDuplicateUnderPolicy(t *testing.T) {
	f := newFixture(t, team.Policy{AllowReinviteAfterReject: true})
	connect(t, f, alice, bob)

	_, err := f.mgr.Invite(context.Background(), alice, bob.Email)
	if !errors.Is(err, apperr.ErrDuplicateInvite) {
		t.Errorf("err = %v, want ErrDuplicateInvite", err)
	}
}

func TestIsTeamMember(t *testing.T) {
	f := newFixture(t, team.Policy{})
	ctx := context.Background()
	connect(t, f, alice, bob)

	if ok, err := f.mgr.IsTeamMember(ctx, alice, bob.ID); err != nil || !ok {
		t.Errorf("IsTeamMember(alice, bob) = %v, %v", ok, err)
	}
	if ok, _ := f.mgr.IsTeamMember(ctx, alice, carol.ID); ok {
		t.Error("carol reported as alice's teammate")
	}

	tm, ok, err := f.mgr.Member(ctx, bob, alice.ID)
	if err != nil || !ok || tm.Email != alice.Email {
		t.Errorf("Member(bob, alice) = %+v, %v, %v", tm, ok, err)
	}
}
