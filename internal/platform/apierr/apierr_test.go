package apierr

import (
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("load: %w", pkgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("publish: %w", pkgerrors.ErrConflict), http.StatusConflict, "conflict"},
		{New(http.StatusBadGateway, "whop_unavailable", fmt.Errorf("boom")), http.StatusBadGateway, "whop_unavailable"},
		{fmt.Errorf("mystery"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("Classify(%v) = (%d,%q), want (%d,%q)", tc.err, status, code, tc.status, tc.code)
		}
	}
}
