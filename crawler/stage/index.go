package stage

import (
	"context"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/extractor"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
)

// Index extracts detail page URLs from a listing page and emits one Detail
// message per URL. Every index pattern contributes URLs; value patterns
// are read as lists because a listing repeats its entries.
func (p *Processor) Index(ctx context.Context, payload *task.CrawlPayload) (Outcome, error) {
	logger := p.logger(ctx, payload)

	if len(payload.PatternIndex) == 0 {
		logger.Info("No index patterns configured, skipping")
		return Skipped(), nil
	}

	doc, err := p.load(ctx, payload)
	if err != nil || doc == nil {
		return Skipped(), err
	}

	specs := listPatterns(payload.PatternIndex)
	result := p.deps.Evaluator.Evaluate(ctx, doc, specs)

	var refs []string
	for _, spec := range specs {
		refs = append(refs, result.Strings(spec.Key)...)
	}
	urls := resolveAll(payload.PageURL, refs)
	if len(urls) == 0 {
		logger.Warn("Index page yielded no detail URLs")
		return Skipped(), nil
	}

	out := Outcome{Status: task.StatusProcessed}
	for _, u := range urls {
		out.Next = append(out.Next, Message{Stage: task.StageDetail, Payload: payload.ForDetail(u)})
	}
	logger.Info("Index page processed", "detail_urls", len(urls))
	return out, nil
}

func listPatterns(specs []extractor.PatternSpec) []extractor.PatternSpec {
	out := make([]extractor.PatternSpec, len(specs))
	for i, spec := range specs {
		if spec.Shape() == extractor.ResultValue {
			spec.ResultType = extractor.ResultMultiline
		}
		out[i] = spec
	}
	return out
}
