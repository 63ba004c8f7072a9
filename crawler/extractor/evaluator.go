package extractor

import (
	"context"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/logging"
)

const defaultSeparator = ":"

// Evaluator applies pattern lists to documents
type Evaluator struct {
	pipes *PipeChain
}

// NewEvaluator creates an evaluator that shapes matches with the given pipe chain
func NewEvaluator(pipes *PipeChain) *Evaluator {
	if pipes == nil {
		pipes = NewPipeChain()
	}
	return &Evaluator{pipes: pipes}
}

// Evaluate extracts every pattern from doc. A pattern that matches nothing,
// even after its alt path, yields an empty field rather than an error.
func (e *Evaluator) Evaluate(ctx context.Context, doc *Document, specs []PatternSpec) Result {
	result := make(Result, len(specs))
	for _, spec := range specs {
		result[spec.Key] = e.evaluateOne(ctx, doc, spec)
	}
	return result
}

func (e *Evaluator) evaluateOne(ctx context.Context, doc *Document, spec PatternSpec) Field {
	switch spec.Shape() {
	case ResultKeyValue:
		return e.keyValue(ctx, doc, spec)
	case ResultMultiline:
		return e.multiline(ctx, doc, spec)
	case ResultContainer:
		return e.container(ctx, doc, spec)
	case ResultValue:
		return e.value(ctx, doc, spec)
	default:
		logging.L(ctx).Warn("Unknown result type, field left empty",
			"key", spec.Key,
			"result_type", spec.ResultType)
		return Value{}
	}
}

// matches evaluates the primary path, then the alt path when the first is empty
func (e *Evaluator) matches(ctx context.Context, doc *Document, spec PatternSpec) []string {
	found := doc.GetAll(spec.Path)
	if len(found) == 0 && spec.Options.AltPath != "" {
		logging.L(ctx).Debug("Primary path empty, trying alt path",
			"key", spec.Key,
			"alt_path", spec.Options.AltPath)
		found = doc.GetAll(spec.Options.AltPath)
	}
	return found
}

func (e *Evaluator) value(ctx context.Context, doc *Document, spec PatternSpec) Field {
	found := e.matches(ctx, doc, spec)
	if len(found) == 0 {
		return Value{}
	}
	out, ok := e.pipes.Apply(ctx, found[0], spec.Pipes)
	return Value{Text: out, Valid: ok}
}

// keyValue turns each matched node into one pair split on the first separator.
// Matches without a separator carry no key and are skipped.
func (e *Evaluator) keyValue(ctx context.Context, doc *Document, spec PatternSpec) Field {
	sep := spec.Options.Separator
	if sep == "" {
		sep = defaultSeparator
	}

	pairs := Pairs{}
	for _, match := range e.matches(ctx, doc, spec) {
		key, value, ok := strings.Cut(match, sep)
		if !ok {
			logging.L(ctx).Debug("key_value match has no separator, skipped",
				"key", spec.Key,
				"match", match)
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out, valid := e.pipes.Apply(ctx, strings.TrimSpace(value), spec.Pipes)
		if !valid {
			out = ""
		}
		pairs = append(pairs, Pair{Key: key, Value: out})
	}
	return pairs
}

func (e *Evaluator) multiline(ctx context.Context, doc *Document, spec PatternSpec) Field {
	lines := Lines{}
	for _, match := range e.matches(ctx, doc, spec) {
		out, ok := e.pipes.Apply(ctx, match, spec.Pipes)
		if !ok || out == "" {
			continue
		}
		lines = append(lines, out)
	}
	return lines
}

func (e *Evaluator) container(ctx context.Context, doc *Document, spec PatternSpec) Field {
	nodes := doc.Nodes(spec.Path)
	if len(nodes) == 0 && spec.Options.AltPath != "" {
		nodes = doc.Nodes(spec.Options.AltPath)
	}

	records := make(Records, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, e.Evaluate(ctx, doc.Scope(node), spec.Patterns))
	}
	return records
}
