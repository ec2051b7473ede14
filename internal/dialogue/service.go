package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/Masudi2022/Shifaa-fyp/internal/advice"
	"github.com/Masudi2022/Shifaa-fyp/internal/config"
	"github.com/Masudi2022/Shifaa-fyp/internal/lexicon"
	"github.com/Masudi2022/Shifaa-fyp/internal/ml"
	"github.com/Masudi2022/Shifaa-fyp/internal/triage"
)

var (
	// ErrMissingField is returned when a required request identifier is absent.
	ErrMissingField = errors.New("device_id, user_email, and session_id are required")
	// ErrUserMismatch is returned when a session already belongs to another user.
	ErrUserMismatch = errors.New("session belongs to another user")
)

// Reset directives and yes/no answers are fixed vocabulary, matched
// case-insensitively against the whole trimmed message.
var (
	resetPhrases = map[string]struct{}{
		"reset": {}, "anzisha upya": {}, "anza upya": {}, "start over": {},
	}
	yesTokens = map[string]struct{}{
		"ndio": {}, "ndiyo": {}, "yes": {}, "y": {}, "naam": {}, "sawa": {}, "poa": {},
	}
	noTokens = map[string]struct{}{
		"hapana": {}, "la": {}, "no": {}, "si": {}, "sio": {}, "siyo": {},
	}
)

// ChatRequest is one conversational turn from the client.
type ChatRequest struct {
	Message   string `json:"message"`
	DeviceID  string `json:"device_id"`
	UserEmail string `json:"user_email"`
	SessionID string `json:"session_id"`
	TopN      int    `json:"top_n,omitempty"`
	Debug     bool   `json:"debug,omitempty"`
}

// EnrichedPrediction pairs a ranked prediction with its resolved advice.
type EnrichedPrediction struct {
	Disease     string       `json:"disease"`
	Probability float64      `json:"probability"`
	Advice      advice.Entry `json:"advice"`
}

// DebugInfo is echoed back when the client sets debug.
type DebugInfo struct {
	ExtractedSymptoms []string    `json:"extracted_symptoms"`
	State             State       `json:"state"`
	Meta              SessionMeta `json:"meta"`
}

// ChatResponse is the full turn payload.
type ChatResponse struct {
	Response            string               `json:"response"`
	Symptoms            []string             `json:"symptoms"`
	PossibleDiseases    []ml.Prediction      `json:"possible_diseases"`
	NextQuestion        string               `json:"next_question,omitempty"`
	EnrichedPredictions []EnrichedPrediction `json:"enriched_predictions,omitempty"`
	TopAdvice           *advice.Entry        `json:"top_advice,omitempty"`
	Confidence          string               `json:"confidence,omitempty"`
	RedFlags            bool                 `json:"red_flags"`
	RedFlagDetails      []string             `json:"red_flag_details,omitempty"`
	Debug               *DebugInfo           `json:"debug,omitempty"`
}

// Service is the dialogue controller.
type Service interface {
	CreateSession(ctx context.Context, deviceID, userEmail, firstMessage string) (*Session, error)
	ListSessions(ctx context.Context, deviceID string) ([]*Session, error)
	Messages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
	Session(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	Diagnose(ctx context.Context, s *Session, topN int) ([]ml.Prediction, []EnrichedPrediction)
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type service struct {
	repo     Repository
	lex      *lexicon.Lexicon
	matrix   *triage.Matrix
	artifact *ml.Artifact
	advisor  *advice.Resolver
	cfg      config.DialogueConfig
}

// NewService wires the dialogue controller. All collaborators are read-only
// after startup except the repository.
func NewService(repo Repository, lex *lexicon.Lexicon, matrix *triage.Matrix, artifact *ml.Artifact, advisor *advice.Resolver, cfg config.DialogueConfig) Service {
	return &service{repo: repo, lex: lex, matrix: matrix, artifact: artifact, advisor: advisor, cfg: cfg}
}

func (s *service) CreateSession(ctx context.Context, deviceID, userEmail, firstMessage string) (*Session, error) {
	if deviceID == "" {
		return nil, ErrMissingField
	}
	sess := &Session{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		UserEmail: userEmail,
		Topic:     sessionTopic(firstMessage),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *service) ListSessions(ctx context.Context, deviceID string) ([]*Session, error) {
	if deviceID == "" {
		return nil, ErrMissingField
	}
	return s.repo.ListByDevice(ctx, deviceID)
}

func (s *service) Messages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	return s.repo.ListMessages(ctx, sessionID)
}

func (s *service) Session(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

// Chat processes one conversational turn.
func (s *service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.DeviceID == "" || req.UserEmail == "" || req.SessionID == "" {
		return nil, ErrMissingField
	}
	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.DeviceID != req.DeviceID {
		return nil, ErrSessionNotFound
	}
	if sess.UserEmail != "" && sess.UserEmail != req.UserEmail {
		return nil, ErrUserMismatch
	}
	sess.UserEmail = req.UserEmail

	topN := req.TopN
	if topN <= 0 {
		topN = s.cfg.TopN
	}

	message := strings.TrimSpace(req.Message)
	if message != "" {
		if err := s.repo.AppendMessage(ctx, &Message{SessionID: sess.ID, IsUser: true, Text: message}); err != nil {
			return nil, err
		}
	}

	if _, isReset := resetPhrases[strings.ToLower(message)]; isReset {
		sess.Reset()
		return s.reply(ctx, sess, replyReset, req.Debug, nil)
	}

	// Step 2: consume a pending yes/no answer before anything else.
	answered := false
	if yn, ok := yesNo(message); ok && len(sess.PendingQuestions) > 0 {
		q := sess.PendingQuestions[0]
		sess.PendingQuestions = sess.PendingQuestions[1:]
		sess.Meta.Asked = appendUnique(sess.Meta.Asked, q)
		if yn {
			sess.Symptoms = mergeSymptoms(sess.Symptoms, []string{q})
		}
		sess.Meta.Candidates = notNil(s.matrix.FilterByPresence(sess.Meta.Candidates, q, yn))
		sess.Meta.CandidateSymptoms = nil // invalidated by new evidence
		answered = true
	}

	// Step 3: extract symptoms from the raw text regardless of step 2.
	extracted := s.lex.Extract(message)
	if len(extracted) > 0 {
		sess.Symptoms = mergeSymptoms(sess.Symptoms, extracted)
	}

	if len(extracted) == 0 && !answered && len(sess.PendingQuestions) == 0 && len(sess.Symptoms) == 0 {
		return s.reply(ctx, sess, replyNoSymptoms, req.Debug, extracted)
	}

	// Step 4: below the narrowing gate, keep prompting without the model.
	if len(sess.Symptoms) < s.cfg.MinSymptoms {
		return s.reply(ctx, sess, replyMoreSymptoms, req.Debug, extracted)
	}

	// Step 5: initialize candidates once per topic. nil means unset; an
	// empty set means contradictory evidence and goes straight to step 8.
	if sess.Meta.Candidates == nil {
		sess.Meta.Candidates = notNil(s.matrix.CandidatesWithSymptoms(sess.Symptoms))
	}

	// Step 6: refresh the question queue when exhausted or invalidated.
	if len(sess.Meta.CandidateSymptoms) == 0 {
		sess.Meta.CandidateSymptoms = s.remainingQuestions(sess)
	}

	// A question is already outstanding: repeat it instead of stacking more.
	if len(sess.PendingQuestions) > 0 {
		q := sess.PendingQuestions[0]
		resp, err := s.reply(ctx, sess, questionText(q), req.Debug, extracted)
		if err != nil {
			return nil, err
		}
		resp.NextQuestion = q
		return resp, nil
	}

	// Step 7: termination policy — six confirmed symptoms or nothing left to
	// ask, whichever comes first.
	ready := len(sess.Symptoms) >= s.cfg.MaxSymptoms || len(sess.Meta.CandidateSymptoms) == 0
	if !ready {
		next := sess.Meta.CandidateSymptoms[0]
		sess.Meta.CandidateSymptoms = sess.Meta.CandidateSymptoms[1:]
		sess.PendingQuestions = append(sess.PendingQuestions, next)
		resp, err := s.reply(ctx, sess, questionText(next), req.Debug, extracted)
		if err != nil {
			return nil, err
		}
		resp.NextQuestion = next
		return resp, nil
	}

	// Step 8: classify, enrich, flag danger signs, clear pending questions.
	return s.diagnose(ctx, sess, topN, req.Debug, extracted)
}

// Diagnose runs the classifier and enrichment for the session's current
// symptom set without mutating it. Backs the report endpoint.
func (s *service) Diagnose(ctx context.Context, sess *Session, topN int) ([]ml.Prediction, []EnrichedPrediction) {
	if topN <= 0 {
		topN = s.cfg.TopN
	}
	preds := s.artifact.Predict(s.artifact.Vectorize(sess.Symptoms), topN)
	enriched, _, ok := s.enrich(preds)
	if !ok {
		return preds, nil
	}
	return preds, enriched
}

func (s *service) diagnose(ctx context.Context, sess *Session, topN int, debug bool, extracted []string) (*ChatResponse, error) {
	preds := s.artifact.Predict(s.artifact.Vectorize(sess.Symptoms), topN)

	var confidence string
	if len(preds) > 0 {
		confidence = ml.Confidence(preds[0].Probability)
	}

	enriched, topAdvice, ok := s.enrich(preds)
	if !ok {
		// Degrade to the raw prediction rather than aborting the turn.
		enriched, topAdvice = nil, nil
	}

	var redFlags bool
	var redHits []string
	if topAdvice != nil {
		redHits = s.redFlagHits(topAdvice.DangerSigns, sess.Symptoms)
		redFlags = len(redHits) > 0
	}

	text := diagnosisText(preds, topAdvice)
	sess.PendingQuestions = nil

	resp, err := s.reply(ctx, sess, text, debug, extracted)
	if err != nil {
		return nil, err
	}
	resp.PossibleDiseases = preds
	resp.EnrichedPredictions = enriched
	resp.TopAdvice = topAdvice
	resp.Confidence = confidence
	resp.RedFlags = redFlags
	resp.RedFlagDetails = redHits
	return resp, nil
}

// enrich resolves advice for every prediction. Faults inside resolution are
// contained here so a turn always answers something.
func (s *service) enrich(preds []ml.Prediction) (enriched []EnrichedPrediction, topAdvice *advice.Entry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("advice enrichment failed: %v", r)
			enriched, topAdvice, ok = nil, nil, false
		}
	}()
	for _, p := range preds {
		entry := s.advisor.Resolve(p.Disease)
		enriched = append(enriched, EnrichedPrediction{
			Disease:     p.Disease,
			Probability: p.Probability,
			Advice:      entry,
		})
	}
	if len(enriched) > 0 {
		topAdvice = &enriched[0].Advice
	}
	return enriched, topAdvice, true
}

// redFlagHits re-extracts each danger-sign phrase and checks whether any of
// its canonical symptoms has been confirmed, catching phrasing variants.
func (s *service) redFlagHits(dangerSigns, confirmed []string) []string {
	reported := make(map[string]struct{}, len(confirmed))
	for _, sym := range confirmed {
		reported[sym] = struct{}{}
	}
	var hits []string
	for _, sign := range dangerSigns {
		for _, sym := range s.lex.Extract(sign) {
			if _, ok := reported[sym]; ok {
				hits = append(hits, sign)
				break
			}
		}
	}
	return hits
}

func (s *service) remainingQuestions(sess *Session) []string {
	ranked := s.matrix.RankCandidateSymptoms(sess.Meta.Candidates)
	known := make(map[string]struct{}, len(sess.Symptoms)+len(sess.Meta.Asked))
	for _, sym := range sess.Symptoms {
		known[sym] = struct{}{}
	}
	for _, sym := range sess.Meta.Asked {
		known[sym] = struct{}{}
	}
	var out []string
	for _, sym := range ranked {
		if _, ok := known[sym]; !ok {
			out = append(out, sym)
		}
	}
	return out
}

// reply persists the session and the bot message, then assembles the common
// response shell.
func (s *service) reply(ctx context.Context, sess *Session, text string, debug bool, extracted []string) (*ChatResponse, error) {
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.repo.AppendMessage(ctx, &Message{SessionID: sess.ID, IsUser: false, Text: text}); err != nil {
		return nil, err
	}
	resp := &ChatResponse{
		Response:         text,
		Symptoms:         notNil(sess.Symptoms),
		PossibleDiseases: []ml.Prediction{},
	}
	if debug {
		resp.Debug = &DebugInfo{
			ExtractedSymptoms: extracted,
			State:             sess.State(s.cfg.MinSymptoms, s.cfg.MaxSymptoms),
			Meta:              sess.Meta,
		}
	}
	return resp, nil
}

const (
	replyReset        = "Tumerejea mwanzo. Tafadhali taja dalili zako - taja dalili mbili kwanza (mf. homa, maumivu ya kichwa)."
	replyNoSymptoms   = "Tafadhali tuzungumzie dalili za magonjwa (taja dalili mbili kwanza)."
	replyMoreSymptoms = "Asante. Tafadhali taja dalili nyingine (taja jumla ya dalili 2 ili nikupe maswali maalum)."
)

func questionText(symptom string) string {
	return fmt.Sprintf("Je, una dalili ya '%s'? (ndio/hapana)", strings.ReplaceAll(symptom, "_", " "))
}

func diagnosisText(preds []ml.Prediction, topAdvice *advice.Entry) string {
	var lines []string
	if len(preds) == 0 {
		lines = append(lines, "Sijaweza kupata utabiri wowote kwa dalili hizi.")
		return strings.Join(lines, "\n")
	}
	lines = append(lines, "Kulingana na dalili ulizotoa, magonjwa yanayowezekana zaidi ni:")
	for _, p := range preds {
		lines = append(lines, fmt.Sprintf("- %s (%.0f%%)", p.Disease, p.Probability*100))
	}
	if topAdvice != nil {
		if topAdvice.Summary != "" {
			lines = append(lines, "", "Maelezo: "+topAdvice.Summary)
		}
		if len(topAdvice.WatchSymptoms) > 0 {
			lines = append(lines, "Dalili muhimu za kuangalia: "+strings.Join(topAdvice.WatchSymptoms, "; "))
		}
		if len(topAdvice.Tests) > 0 {
			lines = append(lines, "Vipimo vinavyopendekezwa: "+strings.Join(topAdvice.Tests, "; "))
		}
		if len(topAdvice.Treatment) > 0 {
			lines = append(lines, "Tiba ya kawaida (fuata ushauri wa daktari): "+strings.Join(topAdvice.Treatment, "; "))
		}
		if len(topAdvice.Prevention) > 0 {
			lines = append(lines, "Kinga: "+strings.Join(topAdvice.Prevention, "; "))
		}
		if len(topAdvice.HomeCare) > 0 {
			lines = append(lines, "Ushauri wa nyumbani: "+strings.Join(topAdvice.HomeCare, "; "))
		}
	}
	switch ml.Confidence(preds[0].Probability) {
	case "high":
		lines = append(lines, "", "Uhakika: wa juu. Bado hakikisha kwa daktari kabla ya tiba.")
	case "medium":
		lines = append(lines, "", "Uhakika: wa kati. Pendekezo: fanya vipimo vilivyotajwa au muone daktari.")
	default:
		lines = append(lines, "", "Uhakika: mdogo. Taja dalili zaidi au fanya vipimo vya awali.")
	}
	return strings.Join(lines, "\n")
}

func yesNo(message string) (yes bool, ok bool) {
	m := strings.ToLower(strings.TrimSpace(message))
	if _, found := yesTokens[m]; found {
		return true, true
	}
	if _, found := noTokens[m]; found {
		return false, true
	}
	return false, false
}

func sessionTopic(firstMessage string) string {
	words := strings.Fields(strings.TrimSpace(firstMessage))
	if len(words) == 0 {
		return "General Inquiry"
	}
	if len(words) > 3 {
		words = words[:3]
	}
	topic := strings.Join(words, " ")
	runes := []rune(topic)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func mergeSymptoms(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range incoming {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

func notNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
