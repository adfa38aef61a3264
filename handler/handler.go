// Package handler exposes the bot over HTTP: the Slack events and
// interaction endpoints plus a small token-guarded management API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"

	"github.com/RaschidJFR/slack-meetups/config"
	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/domain/model"
	"github.com/RaschidJFR/slack-meetups/matcher"
	"github.com/RaschidJFR/slack-meetups/messages"
	"github.com/RaschidJFR/slack-meetups/tasks"
)

// a message whose sole purpose is to trigger the intro update flow
const queryPromptIntroUpdate = "prompt_intro_update"

const statsCacheTTL = 30 * time.Minute

type Handler struct {
	ds    infra.Datastore
	queue *tasks.Queue
	svc   *matcher.Service
	cfg   *config.Config

	statsCache    *ttlcache.Cache[string, []byte]
	routes        []route
	queryHandlers map[string]func(*slackEvent, *model.Person) error
}

func New(cfg *config.Config, ds infra.Datastore, queue *tasks.Queue, svc *matcher.Service) *Handler {
	h := &Handler{
		ds:    ds,
		queue: queue,
		svc:   svc,
		cfg:   cfg,
		statsCache: ttlcache.New(
			ttlcache.WithTTL[string, []byte](statsCacheTTL),
		),
	}
	go h.statsCache.Start()

	// evaluated in order, first match wins
	h.routes = []route{
		{name: "url_verification", match: isURLVerification, serve: h.echoChallenge},
		{name: "bot_message", match: isBotMessage, serve: h.ignoreBotMessage},
		{name: "admin_broadcast", match: h.isAdminBroadcast, serve: h.sendMessageAsBot},
		{name: "user_message", match: func(*eventEnvelope) bool { return true }, serve: h.respondToUser},
	}
	h.queryHandlers = map[string]func(*slackEvent, *model.Person) error{
		model.QueryAddIntro:    h.addIntro,
		model.QueryUpdateIntro: h.updateIntro,
		queryPromptIntroUpdate: h.promptIntroUpdate,
	}
	return h
}

// slackEvent is the inner event of an events API callback. Only the
// fields the bot routes on are decoded; everything else is ignored so
// unrecognized event shapes fall through to the default route instead
// of failing.
type slackEvent struct {
	Type    string `json:"type"`
	BotID   string `json:"bot_id"`
	User    string `json:"user"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

type eventEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	Event     slackEvent `json:"event"`
}

type route struct {
	name  string
	match func(*eventEnvelope) bool
	serve func(http.ResponseWriter, *eventEnvelope)
}

func isURLVerification(env *eventEnvelope) bool {
	return env.Type == "url_verification"
}

func isBotMessage(env *eventEnvelope) bool {
	return env.Event.BotID != ""
}

func (h *Handler) isAdminBroadcast(env *eventEnvelope) bool {
	return h.cfg.AdminSlackUserID != "" &&
		env.Event.User == h.cfg.AdminSlackUserID &&
		ExtractMention(env.Event.Text) != ""
}

// HandleSlackMessage receives Slack events API callbacks and dispatches
// them through the route table.
func (h *Handler) HandleSlackMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		slog.Warn("decoding slack event failed", slog.Any("error", err))
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, rt := range h.routes {
		if rt.match(&env) {
			slog.Debug("routing slack event", slog.String("route", rt.name))
			rt.serve(w, &env)
			return
		}
	}
}

func (h *Handler) echoChallenge(w http.ResponseWriter, env *eventEnvelope) {
	writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
}

// messages sent by bots (including this one) are never responded to
func (h *Handler) ignoreBotMessage(w http.ResponseWriter, env *eventEnvelope) {
	w.WriteHeader(http.StatusNoContent)
}

// sendMessageAsBot relays an admin's message to the person mentioned in
// it, posted as the bot.
func (h *Handler) sendMessageAsBot(w http.ResponseWriter, env *eventEnvelope) {
	target := ExtractMention(env.Event.Text)
	text := StripMention(env.Event.Text)
	if text == "" {
		slog.Warn("admin message had a mention but no text", slog.String("target", target))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.queue.SendMessage(target, tasks.Message{Text: text})
	slog.Info("relaying admin message", slog.String("target", target))
	w.WriteHeader(http.StatusNoContent)
}

// respondToUser answers a direct message based on the question the bot
// last asked this person, falling back to intent matching on the text.
func (h *Handler) respondToUser(w http.ResponseWriter, env *eventEnvelope) {
	userID := env.Event.User
	if userID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	person, err := h.ds.GetPerson(userID)
	if err != nil {
		slog.Error("GetPerson failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if person == nil {
		writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("person not found for user %s", userID))
		return
	}

	query := person.LastQuery
	if query == "" {
		query = determineUserIntent(env.Event.Text)
	}
	if query == "" {
		h.handleUnknownMessage(userID, env.Event.Text)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	serve, ok := h.queryHandlers[query]
	if !ok {
		slog.Error("unknown last query", slog.String("query", query), slog.String("user", userID))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := serve(&env.Event, person); err != nil {
		slog.Error("responding to user failed",
			slog.String("query", query), slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// determineUserIntent matches free-form text against the commands the
// bot understands without a pending question.
func determineUserIntent(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "update") || strings.Contains(lower, "change") {
		if strings.Contains(lower, "intro") || strings.Contains(lower, "bio") {
			return queryPromptIntroUpdate
		}
	}
	return ""
}

// addIntro stores a new member's introduction and marks them available
// for the round they were just asked about.
func (h *Handler) addIntro(ev *slackEvent, person *model.Person) error {
	person.Intro = ev.Text
	person.LastQuery = ""
	if err := h.ds.SavePerson(person); err != nil {
		return fmt.Errorf("SavePerson failed: %w", err)
	}
	if err := h.ds.SetPersonAvailability(person.ID, true); err != nil {
		return fmt.Errorf("SetPersonAvailability failed: %w", err)
	}

	msg := messages.IntroReceived(person)
	if h.cfg.AdminSlackUserID != "" {
		msg += " " + messages.IntroReceivedQuestions
	}
	h.queue.SendMessage(person.UserID, tasks.Message{Text: msg})
	return nil
}

func (h *Handler) promptIntroUpdate(ev *slackEvent, person *model.Person) error {
	person.LastQuery = model.QueryUpdateIntro
	if err := h.ds.SavePerson(person); err != nil {
		return fmt.Errorf("SavePerson failed: %w", err)
	}
	h.queue.SendMessage(person.UserID, tasks.Message{Text: messages.UpdateIntroInstructions(person)})
	return nil
}

func (h *Handler) updateIntro(ev *slackEvent, person *model.Person) error {
	person.Intro = ev.Text
	person.LastQuery = ""
	if err := h.ds.SavePerson(person); err != nil {
		return fmt.Errorf("SavePerson failed: %w", err)
	}
	h.queue.SendMessage(person.UserID, tasks.Message{Text: messages.IntroUpdated(person)})
	return nil
}

// handleUnknownMessage forwards messages the bot can't make sense of to
// the admin, or apologizes if there is no admin.
func (h *Handler) handleUnknownMessage(userID, text string) {
	if h.cfg.AdminSlackUserID != "" {
		h.queue.SendMessage(h.cfg.AdminSlackUserID,
			tasks.Message{Text: messages.UnknownMessageAdmin(userID, text)})
		return
	}
	h.queue.SendMessage(userID, tasks.Message{Text: messages.UnknownMessageNoAdmin})
}

// HandleSlackAction receives block action payloads from the interactive
// messages (availability and met questions).
func (h *Handler) HandleSlackAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.PostFormValue("payload")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "missing payload")
		return
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &callback); err != nil {
		slog.Warn("decoding interaction payload failed", slog.Any("error", err))
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(callback.ActionCallback.BlockActions) == 0 {
		writeJSONError(w, http.StatusBadRequest, "payload has no actions")
		return
	}
	action := callback.ActionCallback.BlockActions[0]

	// block IDs look like "availability-<poolID>" or "met-<matchID>"
	prefix, id, ok := strings.Cut(action.BlockID, "-")
	if !ok {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("unrecognized block ID %q", action.BlockID))
		return
	}
	answer, err := parseYesNo(action.Value)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch prefix {
	case messages.AvailabilityBlockPrefix:
		h.updateAvailability(w, &callback, id, answer)
	case messages.MetBlockPrefix:
		h.updateMet(w, &callback, id, answer)
	default:
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("unrecognized block ID %q", action.BlockID))
	}
}

func parseYesNo(value string) (bool, error) {
	switch value {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized action value %q", value)
	}
}

func (h *Handler) updateAvailability(w http.ResponseWriter, callback *slack.InteractionCallback, poolID string, available bool) {
	userID := callback.User.ID
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "payload has no user")
		return
	}
	person, err := h.ds.GetPerson(userID)
	if err != nil {
		slog.Error("GetPerson failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if person == nil {
		writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("person not found for user %s", userID))
		return
	}
	pool, err := h.ds.GetPool(poolID)
	if err != nil {
		slog.Error("GetPool failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pool == nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("pool not found: %s", poolID))
		return
	}
	membership, err := h.ds.GetMembership(person.ID, pool.ID)
	if err != nil {
		slog.Error("GetMembership failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if membership == nil {
		writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("%s is not a member of pool %q", person, pool.Name))
		return
	}

	membership.Available = &available
	if err := h.ds.SaveMembership(membership); err != nil {
		slog.Error("SaveMembership failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	slog.Info("updated availability",
		slog.String("person", person.String()),
		slog.String("pool", pool.Name),
		slog.Bool("available", available))

	text := messages.UpdatedUnavailable
	if available {
		text = messages.UpdatedAvailable
	}
	h.queue.SendThenAskIfMet(userID, tasks.Message{Text: text, Payload: callback}, pool.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateMet(w http.ResponseWriter, callback *slack.InteractionCallback, matchID string, met bool) {
	userID := callback.User.ID
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "payload has no user")
		return
	}
	person, err := h.ds.GetPerson(userID)
	if err != nil {
		slog.Error("GetPerson failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if person == nil {
		writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("person not found for user %s", userID))
		return
	}
	match, err := h.ds.MatchForUser(userID, matchID)
	if err != nil {
		slog.Error("MatchForUser failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if match == nil {
		writeJSONError(w, http.StatusNotFound,
			fmt.Sprintf("match %s not found for user %s", matchID, userID))
		return
	}

	// the other person may have already answered differently
	if match.Met != nil && *match.Met != met {
		slog.Warn("conflicting met answers for match",
			slog.String("match", match.ID), slog.Bool("previous", *match.Met))
	}
	match.Met = &met
	if err := h.ds.SaveMatch(match); err != nil {
		slog.Error("SaveMatch failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	text := messages.DidNotMeet
	if met {
		other, err := h.ds.GetPersonByID(match.OtherPersonID(person.ID))
		if err != nil || other == nil {
			slog.Error("GetPersonByID failed", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		text = messages.Met(other)
	}
	h.queue.SendMessage(userID, tasks.Message{Text: text, Payload: callback})
	w.WriteHeader(http.StatusNoContent)
}

type poolStats struct {
	Name             string  `json:"name"`
	ParticipantCount int     `json:"participant_count"`
	RoundCount       int     `json:"round_count"`
	MatchCount       int     `json:"match_count"`
	MetCount         int     `json:"met_count"`
	MetRate          float64 `json:"met_rate"`
}

// HandlePoolStats serves aggregate match statistics for a pool, cached
// because the counting scans every match the pool has ever had.
func (h *Handler) HandlePoolStats(w http.ResponseWriter, r *http.Request) {
	channelName := r.PathValue("channel")

	if item := h.statsCache.Get(channelName); item != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(item.Value())
		return
	}

	pool, err := h.ds.GetPoolByChannelName(channelName)
	if err != nil {
		slog.Error("GetPoolByChannelName failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pool == nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("pool not found: %s", channelName))
		return
	}

	stats, err := h.collectPoolStats(pool)
	if err != nil {
		slog.Error("collecting pool stats failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	body, err := json.Marshal(stats)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.statsCache.Set(channelName, body, ttlcache.DefaultTTL)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// collectPoolStats counts matches from completed rounds. The round in
// progress is excluded because its matches haven't had a chance to meet
// yet.
func (h *Handler) collectPoolStats(pool *model.Pool) (*poolStats, error) {
	members, err := h.ds.PoolMembers(pool.ID)
	if err != nil {
		return nil, fmt.Errorf("PoolMembers failed: %w", err)
	}
	rounds, err := h.ds.RoundsForPool(pool.ID)
	if err != nil {
		return nil, fmt.Errorf("RoundsForPool failed: %w", err)
	}
	matches, err := h.ds.MatchesForPool(pool.ID)
	if err != nil {
		return nil, fmt.Errorf("MatchesForPool failed: %w", err)
	}

	now := time.Now()
	openRounds := make(map[string]bool)
	for _, round := range rounds {
		if round.EndDate.After(now) {
			openRounds[round.ID] = true
		}
	}

	stats := &poolStats{
		Name:             pool.Name,
		ParticipantCount: len(members),
		RoundCount:       len(rounds),
	}
	for _, match := range matches {
		if openRounds[match.RoundID] {
			continue
		}
		stats.MatchCount++
		if match.Met != nil && *match.Met {
			stats.MetCount++
		}
	}
	if stats.MatchCount > 0 {
		stats.MetRate = float64(stats.MetCount) / float64(stats.MatchCount)
	}
	return stats, nil
}

// HandleCreatePool registers a Slack channel as a matching pool.
func (h *Handler) HandleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		ChannelID   string `json:"channel_id"`
		ChannelName string `json:"channel_name"`
		Timezone    string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.ChannelID == "" || req.ChannelName == "" {
		writeJSONError(w, http.StatusBadRequest, "name, channel_id and channel_name are required")
		return
	}

	pool := &model.Pool{
		Name:        req.Name,
		ChannelID:   req.ChannelID,
		ChannelName: req.ChannelName,
		Timezone:    req.Timezone,
	}
	if pool.Timezone == "" {
		pool.Timezone = "UTC"
	}
	if err := h.ds.SavePool(pool); err != nil {
		slog.Error("SavePool failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	slog.Info("created pool", slog.String("pool", pool.Name))
	writeJSON(w, http.StatusCreated, pool)
}

// HandleStartRound creates a round for a pool's channel and asks every
// member about their availability.
func (h *Handler) HandleStartRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" {
		writeJSONError(w, http.StatusBadRequest, "channel_id is required")
		return
	}

	round, err := h.svc.StartRound(req.ChannelID)
	if err != nil {
		if errors.Is(err, matcher.ErrPoolNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("StartRound failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// HandleMakeMatches pairs up the people who said they're available for
// a round.
func (h *Handler) HandleMakeMatches(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoundID string `json:"round_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoundID == "" {
		writeJSONError(w, http.StatusBadRequest, "round_id is required")
		return
	}

	matches, err := h.svc.MakeMatches(req.RoundID)
	if err != nil {
		var noExcludable *matcher.NoExcludableParticipantError
		if errors.As(err, &noExcludable) {
			writeJSONError(w, http.StatusConflict, noExcludable.Error())
			return
		}
		slog.Error("MakeMatches failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"round_id": req.RoundID,
		"matches":  matches,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response failed", slog.Any("error", err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
