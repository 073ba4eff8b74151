package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T, target string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext(t, "/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_ExplicitParams(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_ClampsLimit(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=5000"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeValues(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=-1&offset=-5"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit, got %d", p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_PageParam(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=10&page=3"))
	if p.Offset != 20 {
		t.Errorf("expected offset 20 for page 3, got %d", p.Offset)
	}
}

func TestFromContext_OffsetWinsOverPage(t *testing.T) {
	p := FromContext(newContext(t, "/?limit=10&page=3&offset=5"))
	if p.Offset != 5 {
		t.Errorf("expected explicit offset 5, got %d", p.Offset)
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 20, Offset: 0}
	if !p.HasNext(50) {
		t.Error("expected more pages with total 50")
	}
	if p.HasNext(20) {
		t.Error("expected no more pages with total 20")
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 30, 20, 0)
	if !r.HasMore {
		t.Error("expected HasMore true")
	}
	r = NewResponse([]string{"a"}, 10, 20, 0)
	if r.HasMore {
		t.Error("expected HasMore false")
	}
}
