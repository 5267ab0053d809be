package www

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angas/awattar-go/database"
	"github.com/angas/awattar-go/store"
)

func NewStatesHandler(logger *slog.Logger, states StateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := states.GetStates(r.Context(), r.URL.Query().Get("prefix"))
		if err != nil {
			logger.Error("handling states request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []database.StateRow{}
		}
		writeJSON(w, logger, http.StatusOK, rows)
	}
}

type memoryStates struct {
	m *store.Memory
}

// MemoryStates serves the states kept in m, for setups without a database.
func MemoryStates(m *store.Memory) StateReader {
	return memoryStates{m: m}
}

func (s memoryStates) GetStates(_ context.Context, prefix string) ([]database.StateRow, error) {
	ids := s.m.Ids(prefix)
	rows := make([]database.StateRow, 0, len(ids))
	for _, id := range ids {
		obj, _ := s.m.Object(id)
		row := database.StateRow{Id: id, Object: obj}
		if st, ok := s.m.State(id); ok {
			row.Val = st.Val
			row.Ack = st.Ack
			updatedAt := st.UpdatedAt
			row.UpdatedAt = &updatedAt
		}
		rows = append(rows, row)
	}
	return rows, nil
}
