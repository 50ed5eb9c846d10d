package ptouch

import "image"

// PageResult records the outcome of one page in a batch.
type PageResult struct {
	Index   int    `json:"index"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BatchResult summarizes a whole batch job.
type BatchResult struct {
	Total   int          `json:"total"`
	Printed int          `json:"printed"`
	Results []PageResult `json:"results"`
}

// PrintBatch prints pages sequentially over the printer's connection,
// recording each page's outcome. The first failure aborts the remaining
// pages; earlier pages stay printed. With chain enabled, only the final
// page feeds and cuts, so the batch shares one trailing cut.
func PrintBatch(p *Printer, pages []image.Image, opts PrintOptions, chain bool) BatchResult {
	result := BatchResult{Total: len(pages), Results: []PageResult{}}
	for i, page := range pages {
		pageOpts := opts
		if chain {
			pageOpts.Chained = true
			pageOpts.LastPage = i == len(pages)-1
		} else {
			pageOpts.Chained = false
			pageOpts.LastPage = true
		}

		if err := p.PrintImage(page, pageOpts); err != nil {
			result.Results = append(result.Results, PageResult{
				Index: i, Status: "error", Message: err.Error(),
			})
			p.log.Error("batch aborted", "page", i, "err", err)
			return result
		}
		result.Results = append(result.Results, PageResult{Index: i, Status: "ok"})
		result.Printed++
		p.log.Info("printed label", "page", i+1, "total", len(pages))
	}
	return result
}
