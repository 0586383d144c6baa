package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatmodel "github.com/sahayata/saathi/backend/internal/model/chat"
	crisismodel "github.com/sahayata/saathi/backend/internal/model/crisis"
	escalationmodel "github.com/sahayata/saathi/backend/internal/model/escalation"
	knowledgemodel "github.com/sahayata/saathi/backend/internal/model/knowledge"
	moodmodel "github.com/sahayata/saathi/backend/internal/model/mood"
	privacymodel "github.com/sahayata/saathi/backend/internal/model/privacy"
	chatservice "github.com/sahayata/saathi/backend/internal/service/chat"
	escalationservice "github.com/sahayata/saathi/backend/internal/service/escalation"
	"github.com/sahayata/saathi/backend/internal/service/orchestrator"
	"github.com/sahayata/saathi/backend/internal/store"
)

type fakeScorer struct {
	assessment crisismodel.Assessment
}

func (f *fakeScorer) Assess(_ context.Context, userID, _, _ string) crisismodel.Assessment {
	a := f.assessment
	a.UserID = userID
	return a
}

type fakeInferencer struct {
	inference moodmodel.Inference
	floor     float64
}

func (f *fakeInferencer) Infer(context.Context, string, string) moodmodel.Inference {
	return f.inference
}

func (f *fakeInferencer) ConfidenceFloor() float64 { return f.floor }

type fakeRetriever struct {
	snippets []knowledgemodel.Snippet
	err      error
}

func (f *fakeRetriever) Retrieve(context.Context, knowledgemodel.Query) ([]knowledgemodel.Snippet, error) {
	return f.snippets, f.err
}

type fakeResponder struct {
	result      orchestrator.Result
	gotHistory  []chatmodel.Message
	gotLookup   knowledgemodel.Lookup
	gotLanguage string
}

func (f *fakeResponder) Respond(_ context.Context, language string, history []chatmodel.Message, _ string, lookup knowledgemodel.Lookup) orchestrator.Result {
	f.gotLanguage = language
	f.gotHistory = history
	f.gotLookup = lookup
	return f.result
}

type fakeEscalator struct {
	got []crisismodel.Assessment
	err error
}

func (f *fakeEscalator) MaybeEscalate(_ context.Context, a crisismodel.Assessment) (*escalationmodel.Record, error) {
	f.got = append(f.got, a)
	return nil, f.err
}

type pipelineFixture struct {
	controller *Controller
	data       *store.MemoryStore
	responder  *fakeResponder
	escalator  *fakeEscalator
}

func newFixture(t *testing.T, scorer CrisisScorer, inferencer MoodInferencer, retriever *fakeRetriever, responder *fakeResponder) *pipelineFixture {
	t.Helper()
	data := store.NewMemoryStore()
	escalator := &fakeEscalator{}
	controller := NewController(
		chatservice.NewService(data),
		scorer,
		inferencer,
		retriever,
		responder,
		escalator,
		data,
		zerolog.Nop(),
	)
	return &pipelineFixture{controller: controller, data: data, responder: responder, escalator: escalator}
}

func calmInferencer() *fakeInferencer {
	return &fakeInferencer{
		inference: moodmodel.Inference{Label: moodmodel.Calm, Intensity: 4, Confidence: 0.9},
		floor:     0.6,
	}
}

func lowScorer() *fakeScorer {
	return &fakeScorer{assessment: crisismodel.Assessment{Score: 0.1, Level: crisismodel.LevelLow}}
}

func TestHandleMessageReplyDespiteRetrieverFailure(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "I am here with you.", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{err: errors.New("index down")}, responder)

	resp, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: "long day today", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "I am here with you.", resp.ReplyText)
	assert.True(t, responder.gotLookup.Unavailable, "retriever failure should reach the orchestrator as an unavailable lookup")
	assert.False(t, resp.ContextUsed)
}

func TestHandleMessagePersistsTranscript(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "Tell me more.", Tier: orchestrator.TierAugmented, ContextUsed: true, CitedSources: []string{"src-1"}}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	resp, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: "first message", Language: "en"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ConversationID)

	msgs, err := fx.data.GetMessages(context.Background(), resp.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first message", msgs[0].Content)
	assert.Equal(t, "user-1", msgs[0].Sender)
	assert.Equal(t, "Tell me more.", msgs[1].Content)
	assert.Equal(t, chatmodel.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "augmented", msgs[1].Metadata["tier"])
	assert.Equal(t, []string{"src-1"}, resp.CitedSources)
}

func TestHandleMessageHistoryExcludesCurrentUtterance(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	ctx := context.Background()
	_, err := fx.controller.HandleMessage(ctx, ChatRequest{UserID: "user-1", Text: "one"})
	require.NoError(t, err)
	_, err = fx.controller.HandleMessage(ctx, ChatRequest{UserID: "user-1", Text: "two"})
	require.NoError(t, err)

	// Second turn: history holds the first exchange but not "two" itself.
	require.Len(t, responder.gotHistory, 2)
	assert.Equal(t, "one", responder.gotHistory[0].Content)
	for _, msg := range responder.gotHistory {
		assert.NotEqual(t, "two", msg.Content)
	}
}

func TestHandleMessageAppliesMoodForAuthenticatedUser(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	resp, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: "feeling settled"})
	require.NoError(t, err)

	require.NotNil(t, resp.MoodInference)
	assert.True(t, resp.MoodInference.Applied)

	entries, err := fx.data.ListMoodEntries(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, moodmodel.Calm, entries[0].Label)
	assert.False(t, entries[0].CreatedAt.IsZero(), "mood entries must carry their creation time")
}

func TestHandleMessageMoodNoteStaysValidUTF8(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	long := strings.Repeat("मन बहुत शांत है ", 20)
	_, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: long, Language: "hi"})
	require.NoError(t, err)

	entries, err := fx.data.ListMoodEntries(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, utf8.ValidString(entries[0].Note), "truncated note must not split a rune")
	assert.LessOrEqual(t, len(entries[0].Note), 140)
}

type escalationWriteFailStore struct {
	store.DataStore
}

func (s escalationWriteFailStore) CreateEscalation(context.Context, escalationmodel.Record) (escalationmodel.Record, error) {
	return escalationmodel.Record{}, errors.New("escalation table unavailable")
}

func TestHandleMessageReplySurvivesEscalationWriteFailure(t *testing.T) {
	data := escalationWriteFailStore{store.NewMemoryStore()}
	scorer := &fakeScorer{assessment: crisismodel.Assessment{Score: 0.92, Level: crisismodel.LevelHigh}}
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "Please reach out to KIRAN at 1800-599-0019.", Tier: orchestrator.TierSafe}}
	escalator := escalationservice.NewService(
		data, store.NewMemoryCooldownStore(),
		escalationservice.NewMemoryDirectory(map[string]string{"user-9": "inst-1"}),
		5*time.Minute, zerolog.Nop())
	controller := NewController(
		chatservice.NewService(data), scorer, calmInferencer(), &fakeRetriever{}, responder, escalator, data, zerolog.Nop())

	resp, err := controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-9", Text: "i want to end it"})
	require.NoError(t, err)
	assert.Equal(t, "Please reach out to KIRAN at 1800-599-0019.", resp.ReplyText)

	// Both turns of the exchange were still persisted.
	msgs, err := data.GetMessages(context.Background(), resp.ConversationID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestHandleMessageAnonymousNeverPersistsMood(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	resp, err := fx.controller.HandleMessage(context.Background(), ChatRequest{Text: "hello"})
	require.NoError(t, err)

	assert.Nil(t, resp.MoodInference)
	conv, err := fx.data.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(conv.Owner(), "anon-"))

	entries, err := fx.data.ListMoodEntries(context.Background(), conv.Owner(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleMessageRespectsDisabledMoodSharing(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	ctx := context.Background()
	require.NoError(t, fx.data.SetPrivacyFlags(ctx, privacymodel.Flags{UserID: "user-1", ShareMood: false, ShareConversation: true}))

	resp, err := fx.controller.HandleMessage(ctx, ChatRequest{UserID: "user-1", Text: "quiet evening"})
	require.NoError(t, err)

	// The user still sees their own inference; it just is not recorded.
	require.NotNil(t, resp.MoodInference)
	assert.False(t, resp.MoodInference.Applied)

	entries, err := fx.data.ListMoodEntries(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleMessageLowConfidenceNotApplied(t *testing.T) {
	inferencer := &fakeInferencer{
		inference: moodmodel.Inference{Label: moodmodel.Sad, Intensity: 3, Confidence: 0.4},
		floor:     0.6,
	}
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), inferencer, &fakeRetriever{}, responder)

	resp, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: "hmm"})
	require.NoError(t, err)

	require.NotNil(t, resp.MoodInference)
	assert.False(t, resp.MoodInference.Applied)

	entries, err := fx.data.ListMoodEntries(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleMessageForwardsAssessment(t *testing.T) {
	scorer := &fakeScorer{assessment: crisismodel.Assessment{
		Score:           0.92,
		Level:           crisismodel.LevelHigh,
		MatchedPatterns: []string{"kill myself"},
	}}
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "Please reach out to KIRAN at 1800-599-0019.", Tier: orchestrator.TierSafe}}
	fx := newFixture(t, scorer, calmInferencer(), &fakeRetriever{}, responder)

	_, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-9", Text: "i want to end it"})
	require.NoError(t, err)

	require.Len(t, fx.escalator.got, 1)
	assert.Equal(t, "user-9", fx.escalator.got[0].UserID)
	assert.Equal(t, crisismodel.LevelHigh, fx.escalator.got[0].Level)
}

func TestHandleMessageRejectsBlankText(t *testing.T) {
	responder := &fakeResponder{result: orchestrator.Result{ReplyText: "ok", Tier: orchestrator.TierBasic}}
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, responder)

	_, err := fx.controller.HandleMessage(context.Background(), ChatRequest{UserID: "user-1", Text: "   "})
	assert.ErrorIs(t, err, ErrTextRequired)
}

func TestDetectCrisisPersistsAndEscalates(t *testing.T) {
	scorer := &fakeScorer{assessment: crisismodel.Assessment{Score: 0.85, Level: crisismodel.LevelHigh}}
	fx := newFixture(t, scorer, calmInferencer(), &fakeRetriever{}, &fakeResponder{})

	assessment, err := fx.controller.DetectCrisis(context.Background(), "user-2", "can't go on", "en")
	require.NoError(t, err)
	assert.Equal(t, crisismodel.LevelHigh, assessment.Level)
	require.Len(t, fx.escalator.got, 1)
}

func TestInferMoodAutoUpdateGate(t *testing.T) {
	fx := newFixture(t, lowScorer(), calmInferencer(), &fakeRetriever{}, &fakeResponder{})
	ctx := context.Background()

	inference, err := fx.controller.InferMood(ctx, "user-3", "peaceful morning", "en", false)
	require.NoError(t, err)
	assert.False(t, inference.Applied)

	inference, err = fx.controller.InferMood(ctx, "user-3", "peaceful morning", "en", true)
	require.NoError(t, err)
	assert.True(t, inference.Applied)

	entries, err := fx.data.ListMoodEntries(ctx, "user-3", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
