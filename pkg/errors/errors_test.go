package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", detailsOK: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing code")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing code" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detailed := base.WithDetails(map[string]any{"field": "code"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if base.Details() != nil {
		t.Fatalf("WithDetails must not mutate the receiver")
	}
	if !stdErrors.Is(detailed, base) {
		t.Fatalf("detailed copy should still match its sentinel")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "lookup")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestCodeOfFollowsWrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "product 111 not found"))
	if got := CodeOf(err); got != CodeNotFound {
		t.Fatalf("expected not found, got %s", got)
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode should match wrapped typed error")
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("untyped errors should map to internal, got %s", got)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "lookup product")
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d (%v)", len(dump.Chain), dump.Chain)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeConflict, "duplicate code")
	if got := As(err); got == nil || got.Code() != CodeConflict {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestFromDBClassifiesConstraintViolations(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "products_code_key"}, want: CodeConflict},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, want: CodeValidation},
		{name: "pgx check", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"}), want: CodeStateConflict},
		{name: "sqlite unique", err: stdErrors.New("UNIQUE constraint failed: products.code"), want: CodeConflict},
		{name: "sqlite check", err: stdErrors.New("CHECK constraint failed: on_hand_qty"), want: CodeStateConflict},
		{name: "other", err: stdErrors.New("connection refused"), want: CodeDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB(tt.err, "write")
			if CodeOf(got) != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, CodeOf(got))
			}
			if !stdErrors.Is(got, tt.err) {
				t.Fatalf("cause lost")
			}
		})
	}

	typed := New(CodeNotFound, "missing")
	if FromDB(typed, "write") != error(typed) {
		t.Fatalf("typed errors should pass through")
	}
	if FromDB(nil, "write") != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestDumpReadsPostgresFields(t *testing.T) {
	err := Wrap(CodeConflict, &pgconn.PgError{Code: "23505", ConstraintName: "products_code_key", TableName: "products"}, "create product")
	dump := Dump(err)
	if dump.PGCode != "23505" || dump.PGConstraint != "products_code_key" || dump.PGTable != "products" {
		t.Fatalf("unexpected pg fields: %+v", dump)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(CodeRateLimit, "slow down")) {
		t.Fatalf("rate limit should be retryable")
	}
	if Retryable(New(CodeValidation, "bad")) || Retryable(nil) {
		t.Fatalf("validation and nil are not retryable")
	}
}
