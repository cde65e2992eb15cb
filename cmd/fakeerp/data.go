package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/tracking"
)

var ports = []string{"MIA", "LAX", "JFK", "BOG", "LIM", "GRU", "MEX", "MAD", "SHA", "RTM", "HAM", "CLO"}

type erpData struct {
	seed uint64
}

func newERP(seed uint64) *erpData { return &erpData{seed: seed} }

// faker returns a generator that yields the same data for the same consignee.
func (e *erpData) faker(consignee, kind string) *gofakeit.Faker {
	h := fnv.New64a()
	_, _ = h.Write([]byte(kind + "/" + consignee))
	return gofakeit.New(e.seed ^ h.Sum64())
}

func (e *erpData) quotes(w http.ResponseWriter, r *http.Request) {
	consignee, page, size, ok := erpParams(w, r)
	if !ok {
		return
	}
	f := e.faker(consignee, "quotes")
	total := f.Number(8, 60)
	from, to := bounds(total, page, size)

	items := make([]domain.Quote, 0, to-from)
	for n := from; n < to; n++ {
		// Newest first: the highest number on page 1.
		num := total - n
		origin, dest := route(f)
		items = append(items, domain.Quote{
			ID:            fmt.Sprintf("q-%d", num),
			Number:        fmt.Sprintf("COT-%05d", num),
			Date:          day(f, num),
			Origin:        origin,
			Destination:   dest,
			ConsigneeName: consignee,
			Status:        f.RandomString([]string{"draft", "sent", "accepted", "expired"}),
			TotalAmount:   f.Price(350, 18000),
			Currency:      "USD",
			Mode:          domain.Mode(f.RandomString([]string{"air", "ocean"})),
		})
	}
	w.Header().Set("x-total-count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, items)
}

func (e *erpData) shipments(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		consignee, page, size, ok := erpParams(w, r)
		if !ok {
			return
		}
		f := e.faker(consignee, mode)
		total := f.Number(5, 45)
		from, to := bounds(total, page, size)

		items := make([]domain.Shipment, 0, to-from)
		for n := from; n < to; n++ {
			num := total - n
			origin, dest := route(f)
			s := domain.Shipment{
				ID:            fmt.Sprintf("%s-%d", mode, num),
				Date:          day(f, num),
				Origin:        origin,
				Destination:   dest,
				ConsigneeName: consignee,
				Status:        f.RandomString([]string{"booked", "in transit", "arrived", "delivered"}),
				Mode:          domain.Mode(mode),
			}
			if mode == "air" {
				s.Number = fmt.Sprintf("AIR-%05d", num)
				s.Carrier = f.RandomString([]string{"LATAM Cargo", "Avianca Cargo", "Lufthansa Cargo"})
				s.WaybillNumber = awb(f)
			} else {
				s.Number = fmt.Sprintf("OCN-%05d", num)
				s.Carrier = f.RandomString([]string{"Maersk", "MSC", "Hapag-Lloyd", "CMA CGM"})
				s.WaybillNumber = strings.ToUpper(f.Lexify("????")) + f.Numerify("########")
				s.ContainerNumber = strings.ToUpper(f.Lexify("???u")) + f.Numerify("#######")
			}
			items = append(items, s)
		}
		w.Header().Set("x-total-count", strconv.Itoa(total))
		writeJSON(w, http.StatusOK, items)
	}
}

func erpParams(w http.ResponseWriter, r *http.Request) (string, int, int, bool) {
	q := r.URL.Query()
	consignee := strings.TrimSpace(q.Get("ConsigneeName"))
	page, err1 := strconv.Atoi(q.Get("Page"))
	size, err2 := strconv.Atoi(q.Get("ItemsPerPage"))
	if consignee == "" || err1 != nil || err2 != nil || page < 1 || size < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "ConsigneeName, Page and ItemsPerPage are required"})
		return "", 0, 0, false
	}
	return consignee, page, size, true
}

func bounds(total, page, size int) (int, int) {
	from := min((page-1)*size, total)
	return from, min(from+size, total)
}

func route(f *gofakeit.Faker) (string, string) {
	origin := f.RandomString(ports)
	dest := f.RandomString(ports)
	for dest == origin {
		dest = f.RandomString(ports)
	}
	return origin, dest
}

func day(f *gofakeit.Faker, num int) string {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, num*3+f.Number(0, 2)).Format("2006-01-02")
}

// awb builds an air waybill number with a valid check digit.
func awb(f *gofakeit.Faker) string {
	prefix := f.RandomString([]string{"045", "176", "020", "057"})
	serial := f.Number(0, 9_999_999)
	return fmt.Sprintf("%s%07d%d", prefix, serial, serial%7)
}

type trackerData struct {
	mu        sync.Mutex
	shipments []domain.TrackedShipment
	credits   int
	nextID    int64
	faker     *gofakeit.Faker
}

func newTracker(seed uint64, credits int) *trackerData {
	return &trackerData{credits: credits, nextID: 1000, faker: gofakeit.New(seed)}
}

func (t *trackerData) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err1 := strconv.Atoi(q.Get("page"))
	limit, err2 := strconv.Atoi(q.Get("limit"))
	if err1 != nil || err2 != nil || page < 1 || limit < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "page and limit are required"})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	from, to := bounds(len(t.shipments), page, limit)
	out := map[string]any{
		"message":   "ok",
		"shipments": t.shipments[from:to],
		"meta":      map[string]any{"more": to < len(t.shipments), "total": len(t.shipments)},
	}
	writeJSON(w, http.StatusOK, out)
}

func (t *trackerData) create(w http.ResponseWriter, r *http.Request) {
	var req tracking.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad json"})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.shipments {
		if (req.AwbNumber != "" && s.AwbNumber == req.AwbNumber) ||
			(req.ContainerNumber != "" && s.ContainerNumber == req.ContainerNumber) {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Shipment already exists"})
			return
		}
	}
	if t.credits <= 0 {
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"message": "No credits left"})
		return
	}
	t.credits--
	t.nextID++

	origin, dest := route(t.faker)
	s := domain.TrackedShipment{
		ID:              t.nextID,
		Reference:       req.Reference,
		AwbNumber:       req.AwbNumber,
		ContainerNumber: req.ContainerNumber,
		Status:          "NEW",
		Origin:          origin,
		Destination:     dest,
		CreatedAt:       time.Now().UTC(),
		Tags:            req.Tags,
		Followers:       req.Followers,
	}
	// Newest first, like the real service.
	t.shipments = append([]domain.TrackedShipment{s}, t.shipments...)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "created", "shipment": s})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
