package handler

import (
	"log/slog"
	"net/http"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// QuoteReader is the fresh-quote view the quote handler serves. The price
// aggregator satisfies it for in-process serving; the Redis quote mirror can
// back it in server mode.
type QuoteReader interface {
	LatestQuotes(pair domain.Pair) []domain.Quote
}

// QuoteHandler serves the latest non-stale quotes per pair.
type QuoteHandler struct {
	quotes QuoteReader
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler over the given reader.
func NewQuoteHandler(quotes QuoteReader, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logHandler(logger, "quotes"),
	}
}

// GetQuotes returns the current fresh quotes for a pair.
// GET /api/quotes/{pair}
func (h *QuoteHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	raw := pathParam(r, "pair")
	pair, err := domain.ParsePair(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pair: "+raw)
		return
	}

	quotes := h.quotes.LatestQuotes(pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":   pair.String(),
		"quotes": quotes,
		"count":  len(quotes),
	})
}
