package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/awattar-go/database"
	"github.com/angas/awattar-go/logging"
)

func NewLogHandler(logger *slog.Logger, logs LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intOrDefault(r.URL, "page", 1)
		pageSize := intOrDefault(r.URL, "pageSize", 25)
		minLvl := slog.LevelDebug
		if lvl := r.URL.Query().Get("level"); lvl != "" {
			minLvl = logging.LevelFromString(&lvl)
		}

		entries, err := logs.GetLogEntries(r.Context(), minLvl, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []database.LogEntryRow{}
		}
		writeJSON(w, logger, http.StatusOK, entries)
	}
}
