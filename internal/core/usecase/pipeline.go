package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/audithound/saptrail/internal/core/domain"
	"github.com/audithound/saptrail/internal/core/ports"
)

// Pipeline runs the batch transformation: normalize → assemble → correlate →
// classify → sessionize. Single pass over in-memory data; each stage fully
// consumes its input before the next begins.
type Pipeline struct {
	access  ports.AccessLogSource
	changes ports.ChangeDocumentSource

	normalizer  *Normalizer
	assembler   *Assembler
	correlator  *Correlator
	classifier  *Classifier
	sessionizer *Sessionizer

	tolerance time.Duration
}

func NewPipeline(access ports.AccessLogSource, changes ports.ChangeDocumentSource, ref domain.ReferenceData, tolerance time.Duration) *Pipeline {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Pipeline{
		access:      access,
		changes:     changes,
		normalizer:  NewNormalizer(),
		assembler:   NewAssembler(),
		correlator:  NewCorrelator(tolerance),
		classifier:  NewClassifier(ref),
		sessionizer: NewSessionizer(),
		tolerance:   tolerance,
	}
}

// Run executes one analysis. Only fatal schema errors abort; data-quality
// problems surface as drop counts and degraded-mode flags on the result.
func (p *Pipeline) Run(ctx context.Context) (domain.AnalysisResult, error) {
	started := time.Now().UTC()

	accessRows, err := p.access.Load(ctx)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("load access log: %w", err)
	}
	headerRows, err := p.changes.LoadHeaders(ctx)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("load change headers: %w", err)
	}
	itemRows, err := p.changes.LoadItems(ctx)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("load change items: %w", err)
	}

	events, accessDropped := p.normalizer.AccessLog(accessRows)
	if accessDropped > 0 {
		log.Printf("warning: dropped %d access-log rows with unparseable timestamps", accessDropped)
	}
	headers, headerDropped := p.normalizer.ChangeHeaders(headerRows)
	if headerDropped > 0 {
		log.Printf("warning: dropped %d change-header rows with unparseable timestamps", headerDropped)
	}
	items := p.normalizer.ChangeItems(itemRows)

	records, err := p.assembler.Assemble(headers, items)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	corr := p.correlator.Correlate(events, records)
	if corr.Approximate {
		log.Printf("warning: correlation degraded to equality join; matches carry no time-window guarantee")
	}
	log.Printf("correlation complete: %d matched, %d unmatched changes, %d unmatched access events",
		len(corr.Matched), len(corr.UnmatchedChanges), len(corr.UnmatchedAccess))

	res := domain.AnalysisResult{}
	stats := domain.RunStats{
		AccessRows:       len(accessRows),
		AccessDropped:    accessDropped,
		HeaderRows:       len(headerRows),
		HeaderDropped:    headerDropped,
		ItemRows:         len(itemRows),
		ChangeRecords:    len(records),
		Matched:          len(corr.Matched),
		UnmatchedChanges: len(corr.UnmatchedChanges),
		UnmatchedAccess:  len(corr.UnmatchedAccess),
	}

	for _, m := range corr.Matched {
		risk := p.classifier.AssessCorrelated(m)
		tally(&stats, risk.Level)
		res.Correlated = append(res.Correlated, domain.ClassifiedCorrelated{CorrelatedEvent: m, Risk: risk})
	}
	for _, ch := range corr.UnmatchedChanges {
		risk := p.classifier.AssessUnmatchedChange(ch)
		tally(&stats, risk.Level)
		res.UnmatchedChanges = append(res.UnmatchedChanges, domain.ClassifiedChange{ChangeRecord: ch, Risk: risk})
	}
	for _, ev := range corr.UnmatchedAccess {
		risk := p.classifier.AssessUnmatchedAccess(ev)
		tally(&stats, risk.Level)
		res.UnmatchedAccess = append(res.UnmatchedAccess, domain.ClassifiedAccess{AccessLogEvent: ev, Risk: risk})
	}

	res.Timeline = p.sessionizer.Assign(buildTimeline(res))
	log.Printf("risk assessment complete: high=%d medium=%d low=%d unknown=%d",
		stats.HighRisk, stats.MediumRisk, stats.LowRisk, stats.UnknownRisk)

	res.Run = domain.Run{
		ID:          uuid.NewString(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Tolerance:   p.tolerance,
		Approximate: corr.Approximate,
		Stats:       stats,
	}
	return res, nil
}

// buildTimeline flattens the three classified collections into one merged
// timeline: one entry per correlated pair, unmatched change and unmatched
// access event.
func buildTimeline(res domain.AnalysisResult) []domain.TimelineEntry {
	entries := make([]domain.TimelineEntry, 0,
		len(res.Correlated)+len(res.UnmatchedChanges)+len(res.UnmatchedAccess))

	for _, m := range res.Correlated {
		e := changeEntry(m.Change, m.Risk)
		e.Correlated = true
		if m.Access != nil {
			e.Description = m.Access.MessageText
			e.TicketRef = m.Access.TicketRef
			e.ReviewComment = m.Access.ReviewComment
		}
		entries = append(entries, e)
	}
	for _, ch := range res.UnmatchedChanges {
		entries = append(entries, changeEntry(ch.ChangeRecord, ch.Risk))
	}
	for _, ev := range res.UnmatchedAccess {
		entries = append(entries, domain.TimelineEntry{
			Source:          domain.SourceAccessLog,
			User:            ev.User,
			Timestamp:       ev.Timestamp,
			TransactionCode: ev.TransactionCode,
			Description:     ev.MessageText,
			TicketRef:       ev.TicketRef,
			ReviewComment:   ev.ReviewComment,
			Risk:            ev.Risk,
		})
	}
	return entries
}

func changeEntry(ch domain.ChangeRecord, risk domain.RiskAssessment) domain.TimelineEntry {
	return domain.TimelineEntry{
		Source:          domain.SourceChangeDoc,
		User:            ch.User,
		Timestamp:       ch.Timestamp,
		TransactionCode: ch.TransactionCode,
		TableName:       ch.TableName,
		ChangeIndicator: ch.ChangeIndicator,
		FieldName:       ch.FieldName,
		OldValue:        ch.OldValue,
		NewValue:        ch.NewValue,
		Risk:            risk,
	}
}

func tally(stats *domain.RunStats, level domain.RiskLevel) {
	switch level {
	case domain.RiskHigh:
		stats.HighRisk++
	case domain.RiskMedium:
		stats.MediumRisk++
	case domain.RiskLow:
		stats.LowRisk++
	default:
		stats.UnknownRisk++
	}
}
