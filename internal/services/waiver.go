package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrWaiverNotFound              = errors.New("waiver not found")
	ErrWaiverOutdated              = errors.New("waiver has been replaced")
	ErrWaiverRejected              = errors.New("waiver answers rejected")
	ErrWaiverContentRequired       = errors.New("waiver content is required")
	ErrWaiverLabelRequired         = errors.New("question label is required")
	ErrWaiverFieldTypeInvalid      = errors.New("unknown question type")
	ErrWaiverOptionsRequired       = errors.New("choice question needs options")
	ErrWaiverExpectedValueRequired = errors.New("blocking question needs an expected value")
	ErrWaiverQuestionIndex         = errors.New("question index out of range")
)

const (
	answerChecked         = "true"
	answerYes             = "yes"
	answerNo              = "no"
	defaultBlockingNotice = "Votre réponse ne permet pas l'inscription à cette course."
)

// WaiverDraft is a template being edited before it is saved.
type WaiverDraft struct {
	Content    string                  `json:"content"`
	Checkboxes []models.WaiverCheckbox `json:"checkboxes"`
}

// AddCheckbox appends q with the next display order.
func (d *WaiverDraft) AddCheckbox(q models.WaiverCheckbox) {
	if q.FieldType == "" {
		q.FieldType = models.FieldTypeCheckbox
	}
	q.DisplayOrder = len(d.Checkboxes)
	d.Checkboxes = append(d.Checkboxes, q)
}

// RemoveCheckbox drops the question at index and renumbers the rest from 0.
func (d *WaiverDraft) RemoveCheckbox(index int) error {
	if index < 0 || index >= len(d.Checkboxes) {
		return ErrWaiverQuestionIndex
	}
	d.Checkboxes = slices.Delete(d.Checkboxes, index, index+1)
	d.renumber()
	return nil
}

func (d *WaiverDraft) renumber() {
	for i := range d.Checkboxes {
		d.Checkboxes[i].DisplayOrder = i
	}
}

func (d *WaiverDraft) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return ErrWaiverContentRequired
	}
	for i, q := range d.Checkboxes {
		if err := validateQuestion(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func validateQuestion(q models.WaiverCheckbox) error {
	if strings.TrimSpace(q.Label) == "" {
		return ErrWaiverLabelRequired
	}
	switch q.FieldType {
	case models.FieldTypeCheckbox, models.FieldTypeYesNo, models.FieldTypeText:
	case models.FieldTypeRadio:
		if len(q.Options) == 0 {
			return ErrWaiverOptionsRequired
		}
	default:
		return ErrWaiverFieldTypeInvalid
	}
	if !q.IsBlocking {
		return nil
	}
	if q.ExpectedValue == nil || *q.ExpectedValue == "" {
		return ErrWaiverExpectedValueRequired
	}
	if q.FieldType == models.FieldTypeRadio && !slices.Contains(q.Options, *q.ExpectedValue) {
		return ErrWaiverExpectedValueRequired
	}
	if q.FieldType == models.FieldTypeYesNo && *q.ExpectedValue != answerYes && *q.ExpectedValue != answerNo {
		return ErrWaiverExpectedValueRequired
	}
	return nil
}

// WaiverVars returns the placeholder values for a race.
func WaiverVars(rc *models.RaceContext) map[string]string {
	return map[string]string{
		"ORGANIZER_NAME": rc.Organizer.Name,
		"EVENT_NAME":     rc.Event.Name,
		"RACE_NAME":      rc.Race.Name,
		"DISTANCE":       strconv.FormatFloat(rc.Race.DistanceKm, 'f', -1, 64) + " km",
		"DATE":           rc.Race.StartsAt.Format("02/01/2006"),
		"LOCATION":       rc.Event.Location,
	}
}

// RenderWaiver replaces {NAME} tokens literally. Unknown tokens are left as is.
func RenderWaiver(content string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

type WaiverEvaluation struct {
	Missing  []uuid.UUID `json:"missing"`
	Blocking []string    `json:"blocking_messages"`
}

func (e WaiverEvaluation) Accepted() bool {
	return len(e.Missing) == 0 && len(e.Blocking) == 0
}

// WaiverRejectionError carries the evaluation behind ErrWaiverRejected.
type WaiverRejectionError struct {
	Evaluation WaiverEvaluation
}

func (e *WaiverRejectionError) Error() string {
	return fmt.Sprintf("waiver answers rejected: %d missing, %d blocking", len(e.Evaluation.Missing), len(e.Evaluation.Blocking))
}

func (e *WaiverRejectionError) Is(target error) bool {
	return target == ErrWaiverRejected
}

// EvaluateAnswers checks answers, keyed by question id, against required and
// blocking questions.
func EvaluateAnswers(questions []models.WaiverCheckbox, answers map[string]string) WaiverEvaluation {
	eval := WaiverEvaluation{Missing: []uuid.UUID{}, Blocking: []string{}}
	for _, q := range questions {
		answer := strings.TrimSpace(answers[q.ID.String()])
		answered := answer != ""
		if q.FieldType == models.FieldTypeCheckbox {
			answered = answer == answerChecked
		}

		if !answered {
			if q.IsRequired {
				eval.Missing = append(eval.Missing, q.ID)
			}
			continue
		}

		if q.IsBlocking && q.ExpectedValue != nil && answer != *q.ExpectedValue {
			msg := defaultBlockingNotice
			if q.BlockingMessage != nil && *q.BlockingMessage != "" {
				msg = *q.BlockingMessage
			}
			eval.Blocking = append(eval.Blocking, msg)
		}
	}
	return eval
}

type WaiverService struct {
	db        *database.DB
	races     RaceContextLoader
	publisher Publisher
}

func NewWaiverService(db *database.DB, races RaceContextLoader, publisher Publisher) *WaiverService {
	return &WaiverService{db: db, races: races, publisher: publisherOrNoop(publisher)}
}

// Preview renders unsaved content for a race.
func (s *WaiverService) Preview(ctx context.Context, raceID uuid.UUID, content string) (string, error) {
	rc, err := s.races.GetRaceContext(ctx, raceID)
	if err != nil {
		return "", err
	}
	return RenderWaiver(content, WaiverVars(rc)), nil
}

var waiverCheckboxCopyColumns = []string{
	"template_id", "label", "field_type", "options", "is_required",
	"is_blocking", "expected_value", "blocking_message", "display_order",
}

// Save replaces the race's active waiver with draft. Every write happens in a
// single transaction: on failure the race keeps its previous template.
func (s *WaiverService) Save(ctx context.Context, raceID uuid.UUID, draft WaiverDraft, authorID uuid.UUID) (*models.WaiverTemplate, error) {
	draft.renumber()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE waiver_templates SET is_active = FALSE
		WHERE race_id = $1 AND is_active = TRUE
	`, raceID); err != nil {
		return nil, fmt.Errorf("failed to deactivate waivers: %w", err)
	}

	tmpl := &models.WaiverTemplate{RaceID: raceID, Content: draft.Content, IsActive: true, CreatedBy: &authorID}
	if err := tx.QueryRow(ctx, `
		INSERT INTO waiver_templates (race_id, content, is_active, created_by)
		VALUES ($1, $2, TRUE, $3)
		RETURNING id, created_at
	`, raceID, draft.Content, authorID).Scan(&tmpl.ID, &tmpl.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert waiver: %w", err)
	}

	rows := make([][]any, len(draft.Checkboxes))
	for i, q := range draft.Checkboxes {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		rows[i] = []any{tmpl.ID, q.Label, q.FieldType, options, q.IsRequired, q.IsBlocking, q.ExpectedValue, q.BlockingMessage, q.DisplayOrder}
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"waiver_checkboxes"}, waiverCheckboxCopyColumns, pgx.CopyFromRows(rows)); err != nil {
			return nil, fmt.Errorf("failed to insert waiver questions: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `UPDATE races SET waiver_template_id = $1 WHERE id = $2`, tmpl.ID, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach waiver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrRaceNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit waiver: %w", err)
	}

	for i := range draft.Checkboxes {
		draft.Checkboxes[i].TemplateID = tmpl.ID
	}
	tmpl.Checkboxes = draft.Checkboxes
	s.publisher.Publish(raceID, EventWaiverPublished, tmpl)
	return tmpl, nil
}

// GetActive returns the race's active waiver with its questions in display order.
func (s *WaiverService) GetActive(ctx context.Context, raceID uuid.UUID) (*models.WaiverTemplate, error) {
	var t models.WaiverTemplate
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, race_id, content, is_active, created_by, created_at
		FROM waiver_templates
		WHERE race_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, raceID).Scan(&t.ID, &t.RaceID, &t.Content, &t.IsActive, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWaiverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load waiver: %w", err)
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, template_id, label, field_type, options, is_required, is_blocking,
		       expected_value, blocking_message, display_order
		FROM waiver_checkboxes
		WHERE template_id = $1
		ORDER BY display_order
	`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waiver questions: %w", err)
	}
	defer rows.Close()

	t.Checkboxes = []models.WaiverCheckbox{}
	for rows.Next() {
		var q models.WaiverCheckbox
		if err := rows.Scan(&q.ID, &q.TemplateID, &q.Label, &q.FieldType, &q.Options, &q.IsRequired, &q.IsBlocking,
			&q.ExpectedValue, &q.BlockingMessage, &q.DisplayOrder); err != nil {
			return nil, err
		}
		t.Checkboxes = append(t.Checkboxes, q)
	}
	return &t, rows.Err()
}

type AcceptWaiverInput struct {
	RaceID     uuid.UUID         `json:"-"`
	UserID     uuid.UUID         `json:"-"`
	TemplateID uuid.UUID         `json:"template_id" validate:"required"`
	Answers    map[string]string `json:"answers"`
}

// Accept records the participant's acceptance of the active waiver. Answers
// that miss a required question or fail a blocking one are rejected with a
// *WaiverRejectionError.
func (s *WaiverService) Accept(ctx context.Context, in AcceptWaiverInput, now time.Time) (*models.WaiverAcceptance, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	tmpl, err := s.GetActive(ctx, in.RaceID)
	if err != nil {
		return nil, err
	}
	if tmpl.ID != in.TemplateID {
		return nil, ErrWaiverOutdated
	}

	if eval := EvaluateAnswers(tmpl.Checkboxes, in.Answers); !eval.Accepted() {
		return nil, &WaiverRejectionError{Evaluation: eval}
	}

	if in.Answers == nil {
		in.Answers = map[string]string{}
	}
	answers, err := json.Marshal(in.Answers)
	if err != nil {
		return nil, err
	}

	acc := &models.WaiverAcceptance{TemplateID: tmpl.ID, RaceID: in.RaceID, UserID: in.UserID, Answers: in.Answers}
	if err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO waiver_acceptances (template_id, race_id, user_id, answers, accepted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, accepted_at
	`, tmpl.ID, in.RaceID, in.UserID, answers, now).Scan(&acc.ID, &acc.AcceptedAt); err != nil {
		return nil, fmt.Errorf("failed to record acceptance: %w", err)
	}

	s.publisher.Publish(in.RaceID, EventWaiverAccepted, acc)
	return acc, nil
}
