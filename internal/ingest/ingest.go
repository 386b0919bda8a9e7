// Package ingest feeds raw extraction records into the resolution kernel.
// It owns the messy edge: decoding JSONL, validating stringly-typed fields,
// inferring the owning entity, and consulting the extraction coordinator so
// the same span is not counted twice across extraction domains.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"dealroom/internal/resolution/coordinator"
	"dealroom/internal/resolution/inference"
	"dealroom/internal/resolution/models"
	"dealroom/internal/resolution/repository"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

const (
	defaultWorkers = 8
	// maxLineBytes bounds one JSONL record; payloads carry extracted fields,
	// not documents.
	maxLineBytes = 1 << 20
)

// Result summarizes one ingest run. Malformed lines are never silently
// dropped: they are counted here and logged with their line number.
type Result struct {
	Resolved  int64
	Skipped   int64 // claimed by another extraction domain
	Dropped   int64 // rejected by the kernel (invalid name, conflict)
	Malformed int64 // undecodable or failing field validation
}

type Ingestor struct {
	repos         map[id.ObjectType]*repository.Repository
	classifier    *inference.Classifier
	coord         *coordinator.Coordinator
	domain        string
	defaultEntity models.Entity
	workers       int
	logger        *slog.Logger
}

type Option func(*Ingestor)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

// WithCoordinator enables cross-domain claim checks. domain names this
// ingestor's extraction domain when claiming spans.
func WithCoordinator(coord *coordinator.Coordinator, domain string) Option {
	return func(i *Ingestor) {
		i.coord = coord
		i.domain = domain
	}
}

func WithClassifier(c *inference.Classifier) Option {
	return func(i *Ingestor) { i.classifier = c }
}

func WithWorkers(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithDefaultEntity sets the entity used when a record carries none and its
// context is inconclusive. Defaults to target, where most diligence facts
// belong.
func WithDefaultEntity(entity models.Entity) Option {
	return func(i *Ingestor) { i.defaultEntity = entity }
}

// New builds an ingestor over one repository per object type. Repositories
// must all belong to the same deal.
func New(repos []*repository.Repository, opts ...Option) (*Ingestor, error) {
	if len(repos) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ingestor requires at least one repository")
	}
	byType := make(map[id.ObjectType]*repository.Repository, len(repos))
	dealID := repos[0].DealID()
	for _, repo := range repos {
		if repo.DealID() != dealID {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "repositories span multiple deals").
				Add("deal_id", string(dealID)).
				Add("other_deal_id", string(repo.DealID()))
		}
		if _, dup := byType[repo.ObjectType()]; dup {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "duplicate repository for object type").
				Add("object_type", repo.ObjectType().String())
		}
		byType[repo.ObjectType()] = repo
	}

	i := &Ingestor{
		repos:         byType,
		classifier:    inference.NewClassifier(),
		defaultEntity: models.EntityTarget,
		workers:       defaultWorkers,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Run decodes JSONL records from r and resolves them concurrently. The
// reader is consumed sequentially; resolution fans out over an errgroup
// (repositories serialize internally). Run returns the first worker error
// alongside whatever counts accumulated before it.
func (i *Ingestor) Run(ctx context.Context, r io.Reader) (Result, error) {
	var result Result
	var resolved, skipped, dropped, malformed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
scan:
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			break scan
		default:
		}

		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			malformed.Add(1)
			i.logger.Warn("undecodable ingest record", "line", line, "error", err)
			continue
		}

		v, err := record.validate()
		if err != nil {
			malformed.Add(1)
			i.logger.Warn("invalid ingest record", "line", line, "error", err)
			continue
		}

		g.Go(func() error {
			outcome, err := i.process(ctx, v)
			switch {
			case err != nil:
				return err
			case outcome == outcomeResolved:
				resolved.Add(1)
			case outcome == outcomeSkipped:
				skipped.Add(1)
			case outcome == outcomeDropped:
				dropped.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = scanner.Err()
	}

	result.Resolved = resolved.Load()
	result.Skipped = skipped.Load()
	result.Dropped = dropped.Load()
	result.Malformed = malformed.Load()
	return result, err
}

type outcome int

const (
	outcomeResolved outcome = iota
	outcomeSkipped
	outcomeDropped
)

func (i *Ingestor) process(ctx context.Context, v validated) (outcome, error) {
	repo, ok := i.repos[v.objectType]
	if !ok {
		i.logger.Warn("no repository for object type, dropping record",
			"object_type", v.objectType.String(),
			"name", v.name,
		)
		return outcomeDropped, nil
	}

	if i.coord != nil {
		claimant, claimed, err := i.coord.GetExtractingDomain(ctx, v.docID, v.name)
		if err != nil {
			return outcomeDropped, err
		}
		if claimed && claimant != i.domain {
			i.logger.Debug("span claimed by another domain, skipping",
				"document_id", v.docID.String(),
				"name", v.name,
				"claimant", claimant,
			)
			return outcomeSkipped, nil
		}
		if err := i.coord.MarkExtracted(ctx, v.docID, v.name, i.domain); err != nil {
			return outcomeDropped, err
		}
	}

	entity := v.entity
	if entity == "" {
		entity = i.classifier.Infer(v.context, i.defaultEntity)
	}

	_, err := repo.FindOrCreate(ctx, repository.FindOrCreateInput{
		Name:        v.name,
		Entity:      entity,
		Vendor:      v.vendor,
		SourceType:  v.sourceType,
		Confidence:  v.raw.Confidence,
		Evidence:    v.raw.Evidence,
		ExtractedAt: v.raw.ExtractedAt,
		Payload:     v.raw.Payload,
	})
	if err != nil {
		// Kernel rejections are per-record, not fatal for the run.
		if dErrors.HasCode(err, dErrors.CodeInvalidName) ||
			dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
			dErrors.HasCode(err, dErrors.CodeConflict) {
			i.logger.Warn("record rejected by kernel",
				"name", v.name,
				"object_type", v.objectType.String(),
				"error", err,
			)
			return outcomeDropped, nil
		}
		return outcomeDropped, err
	}
	return outcomeResolved, nil
}
