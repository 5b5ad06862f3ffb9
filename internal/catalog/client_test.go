package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "", 2*time.Second)
}

func TestPromotionDecodesCatalogShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Path != "/v1/promocao" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"idPromocao": 42,
			"tituloPromocao": "Sorteio de Natal",
			"banner": "https://cdn.example/banner.png",
			"valorPromocao": "2.99",
			"dataSorteioPrincipal": "24/12/2026 20:00",
			"config": {"multiProduto": {"qtdMinimaCupons": 1, "qtdMaximaCupons": "100", "botoesQtd": [5, 10, "20"]}}
		}`))
	})
	p, err := c.Promotion(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "42" || p.Title != "Sorteio de Natal" {
		t.Fatalf("unexpected promotion %+v", p)
	}
	if p.UnitPrice.String() != "2.99" {
		t.Fatalf("expected price 2.99, got %s", p.UnitPrice)
	}
	if p.MinQty != 1 || p.MaxQty != 100 {
		t.Fatalf("unexpected bounds [%d,%d]", p.MinQty, p.MaxQty)
	}
	if len(p.QuickAddSteps) != 3 || p.QuickAddSteps[2] != 20 {
		t.Fatalf("unexpected quick add steps %v", p.QuickAddSteps)
	}
	want := time.Date(2026, 12, 24, 23, 0, 0, 0, time.UTC)
	if !p.DrawDate.Equal(want) {
		t.Fatalf("expected draw %s, got %s", want, p.DrawDate.UTC())
	}
}

func TestUpstreamFailuresAreClassified(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusBadGateway, `{"error":"boom"}`, apperr.ErrUpstreamUnavailable},
		{"not found", http.StatusNotFound, ``, apperr.ErrNotFound},
		{"rejected", http.StatusBadRequest, `{"msg":"cpf invalido"}`, apperr.ErrValidation},
		{"bad shape", http.StatusOK, `[1,2,3]`, apperr.ErrUnexpectedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Coupons(context.Background(), "12345678901", 1, 10, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUnreachableCatalog(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url, "k", "", time.Second)
	if _, err := c.Promotion(context.Background()); !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestCouponsEmptyListingIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Sorteio de Natal": []}`))
	})
	_, err := c.Coupons(context.Background(), "12345678901", 1, 10, []string{"Sorteio de Natal"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCouponsGroupedByProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/consulta/titulos/2/5" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["cpf"] != "12345678901" {
			t.Errorf("unexpected cpf %v", body["cpf"])
		}
		_, _ = w.Write([]byte(`{"Natal": [{"idTitulo": 7, "dataCompra": "01/12/2026 10:30", "codigoAutenticacao": "AB12", "dezenas": [1, "02", 33]}]}`))
	})
	got, err := c.Coupons(context.Background(), "12345678901", 2, 5, []string{"Natal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := got["Natal"]
	if len(list) != 1 || list[0].ID != "7" || list[0].AuthenticationCode != "AB12" {
		t.Fatalf("unexpected coupons %+v", got)
	}
	if len(list[0].DrawNumbers) != 3 || list[0].DrawNumbers[1] != "02" {
		t.Fatalf("unexpected draw numbers %v", list[0].DrawNumbers)
	}
}

func TestRegisterAndConfirm(t *testing.T) {
	var confirmed string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/atendimento":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["qtdeTitulos"].(float64) != 2 || body["chaveCliente"] == "" {
				t.Errorf("unexpected attend body %v", body)
			}
			_, _ = w.Write([]byte(`{"protocolo": 99123}`))
		case "/v1/atendimento/99123/confirmar":
			confirmed = "99123"
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	rec, err := c.Register(context.Background(), "12345678901", "11999999999", 2)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Protocol != "99123" || rec.ExternalClientKey == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := c.Confirm(context.Background(), rec.Protocol); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed != "99123" {
		t.Fatalf("confirm endpoint not called")
	}
}

func TestResultsSortedByDrawDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"values": [
			{"id": 1, "titulo": "Antigo", "dataSorteioPrincipal": "01/01/2025 20:00"},
			{"id": 2, "titulo": "Novo", "dataSorteioPrincipal": "01/06/2026 20:00"}
		]}`))
	})
	got, err := c.Results(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}
