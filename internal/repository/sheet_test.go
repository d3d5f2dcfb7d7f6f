package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/sheets"
)

// fakeStore имитирует API значений удалённой таблицы: хранит вкладки как
// матрицы строк и обслуживает get/update/append.
type fakeStore struct {
	mu   sync.Mutex
	tabs map[string][][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tabs: map[string][][]string{}}
}

func (s *fakeStore) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		parts := strings.Split(r.URL.EscapedPath(), "/values/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}

		raw := parts[1]
		isAppend := strings.HasSuffix(raw, ":append")
		raw = strings.TrimSuffix(raw, ":append")

		rng, err := url.PathUnescape(raw)
		if err != nil {
			t.Fatalf("unescape range: %v", err)
		}
		tab := strings.SplitN(rng, "!", 2)[0]

		switch {
		case r.Method == http.MethodGet:
			resp := sheets.ValueRange{Range: rng, Values: s.tabs[tab]}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				t.Fatalf("encode: %v", err)
			}
		case r.Method == http.MethodPost && isAppend:
			var body sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			s.tabs[tab] = append(s.tabs[tab], body.Values...)
		case r.Method == http.MethodPut:
			var body sheets.ValueRange
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			s.applyUpdate(t, tab, rng, body.Values)
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	})
}

// applyUpdate обрабатывает запись блока вида "OPs!J5:O5".
func (s *fakeStore) applyUpdate(t *testing.T, tab, rng string, values [][]string) {
	cells := strings.SplitN(rng, "!", 2)[1]
	bounds := strings.SplitN(cells, ":", 2)

	startCol := int(bounds[0][0] - 'A')
	startRow, err := parseRowNumber(bounds[0][1:])
	if err != nil {
		t.Fatalf("parse range %q: %v", rng, err)
	}

	rows := s.tabs[tab]
	idx := startRow - 2
	if idx < 0 || idx >= len(rows) {
		t.Fatalf("update outside stored rows: %q", rng)
	}

	row := rows[idx]
	for len(row) < startCol+len(values[0]) {
		row = append(row, "")
	}
	copy(row[startCol:], values[0])
	rows[idx] = row
}

func parseRowNumber(s string) (int, error) {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

func seedOrders(store *fakeStore) {
	store.tabs["OPs"] = [][]string{
		{"OP00001", "02/11/2025 09:30", "Ffilotex", "FO273", "Azul Royal",
			"100", "50", "LH048", "500",
			"Pendente", "0", "0", "", "", "", "NaoImpressa", "", "Ativa"},
		{"OP00002", "02/11/2025 10:15", "CC Fios", "FO310", "Vermelho",
			"80", "40", "LH310", "400",
			"Total", "80", "40", "completa", "02/11/2025 11:00", "separador1",
			"Impressa", "02/11/2025 11:30", "Ativa"},
	}
	store.tabs["ProdutosAcabados"] = [][]string{
		{"LH048", "Linha Hortolandia 48 Tex", "7891234567890", "Ffilotex", "FO273", "SIM"},
		{"LH310", "Linha Premium 310", "7891234567891", "CC Fios", "FO310", "SIM"},
	}
}

func newSheetRepo(t *testing.T, store *fakeStore) *SheetRepository {
	t.Helper()

	ts := httptest.NewServer(store.handler(t))
	t.Cleanup(ts.Close)

	return NewSheetRepository(sheets.NewClient(ts.URL, "sheet-1", "token"))
}

func TestSheetRepository_FetchAll(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	orders, err := repo.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}

	if len(orders) != 2 {
		t.Fatalf("len = %d, want 2", len(orders))
	}

	first := orders[0]
	if first.Number != "OP00001" || first.Group != model.GroupFfilotex {
		t.Fatalf("unexpected order: %+v", first)
	}
	if first.RequestedSpools != 100 || first.RequestedKg != 50 {
		t.Fatalf("requested quantities: %v / %v", first.RequestedSpools, first.RequestedKg)
	}
	if first.SeparationStatus != model.SeparationPending || first.SeparationTimestamp != nil {
		t.Fatalf("pending order state: %+v", first)
	}
	if first.FinishedDescription != "Linha Hortolandia 48 Tex" || first.Barcode != "7891234567890" {
		t.Fatalf("catalog enrichment missing: %+v", first)
	}

	second := orders[1]
	if second.SeparationStatus != model.SeparationFull || second.SeparatedSpools != 80 {
		t.Fatalf("unexpected order: %+v", second)
	}
	if second.PrintStatus != model.PrintStatusPrinted || second.PrintTimestamp == nil {
		t.Fatalf("print state: %+v", second)
	}
}

func TestSheetRepository_PersistSeparation(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	upd := SeparationUpdate{
		Status:          model.SeparationPartial,
		SeparatedSpools: 80,
		SeparatedKg:     40,
		Note:            "faltam 20 rocas",
		Timestamp:       time.Date(2025, 11, 2, 12, 30, 0, 0, time.Local),
		User:            "separador1",
	}

	if err := repo.PersistSeparation(context.Background(), "OP00001", upd); err != nil {
		t.Fatalf("PersistSeparation error: %v", err)
	}

	row := store.tabs["OPs"][0]
	want := []string{"Parcial", "80", "40", "faltam 20 rocas", "02/11/2025 12:30", "separador1"}
	for i, w := range want {
		if row[9+i] != w {
			t.Fatalf("column %d = %q, want %q (row %v)", 9+i, row[9+i], w, row)
		}
	}

	// Колонки вне J–O не затронуты.
	if row[0] != "OP00001" || row[15] != "NaoImpressa" || row[17] != "Ativa" {
		t.Fatalf("columns outside J-O changed: %v", row)
	}
}

func TestSheetRepository_PersistSeparation_Vanished(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	err := repo.PersistSeparation(context.Background(), "OP09999", SeparationUpdate{})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("error = %v, want ErrConcurrentModification", err)
	}
}

func TestSheetRepository_PersistPrintMark(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	at := time.Date(2025, 11, 3, 8, 0, 0, 0, time.Local)
	if err := repo.PersistPrintMark(context.Background(), "OP00001", at); err != nil {
		t.Fatalf("PersistPrintMark error: %v", err)
	}

	row := store.tabs["OPs"][0]
	if row[15] != "Impressa" || row[16] != "03/11/2025 08:00" {
		t.Fatalf("print columns: %v", row[15:17])
	}
}

func TestSheetRepository_AuditRoundTrip(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	rec := model.AuditRecord{
		ID:          "rec-1",
		Timestamp:   time.Date(2025, 11, 2, 12, 30, 0, 0, time.Local),
		OrderNumber: "OP00001",
		Action:      "SeparacaoAtualizada: Parcial",
		Actor:       "separador1",
		Previous:    "Pendente",
		New:         "Parcial - 80 rocas",
	}

	if err := repo.AppendAuditRecord(context.Background(), rec); err != nil {
		t.Fatalf("AppendAuditRecord error: %v", err)
	}
	if err := repo.AppendAuditRecord(context.Background(), model.AuditRecord{
		ID:          "rec-2",
		OrderNumber: "OP00002",
		Action:      "OPImpressa",
	}); err != nil {
		t.Fatalf("AppendAuditRecord error: %v", err)
	}

	got, err := repo.AuditByOrder(context.Background(), "OP00001")
	if err != nil {
		t.Fatalf("AuditByOrder error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "rec-1" || got[0].Action != rec.Action {
		t.Fatalf("unexpected audit records: %+v", got)
	}
}

func TestSheetRepository_FetchByNumber(t *testing.T) {
	store := newFakeStore()
	seedOrders(store)
	repo := newSheetRepo(t, store)

	o, err := repo.FetchByNumber(context.Background(), "OP00002")
	if err != nil {
		t.Fatalf("FetchByNumber error: %v", err)
	}
	if o.Number != "OP00002" || o.SeparatedKg != 40 {
		t.Fatalf("unexpected order: %+v", o)
	}

	if _, err := repo.FetchByNumber(context.Background(), "OP00042"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}
