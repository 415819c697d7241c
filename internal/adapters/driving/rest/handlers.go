package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// TokenScheme is the Authorization scheme of session tokens.
const TokenScheme = "Token"

const maxRequestBody = 4 << 20

// Error messages written to peers.
const (
	msgForbidden    = "Not authorized to access requested item."
	msgUnauthorized = "Authentication required."
	msgNotFound     = "No such item."
	msgInternal     = "Internal error."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// remoteFolderRequest is the wire form of a delegation request.
type remoteFolderRequest struct {
	Account       string   `json:"account" validate:"required"`
	Item          int      `json:"item" validate:"required,gt=0"`
	IncludeFields []string `json:"includeFields" validate:"required,min=1,dive,required"`
	Tree          bool     `json:"tree"`
	Existing      []string `json:"existing"`
	Debug         bool     `json:"debug"`
}

func (r remoteFolderRequest) toDomain() domain.DelegationRequest {
	return domain.DelegationRequest{
		Account:       r.Account,
		Item:          r.Item,
		IncludeFields: r.IncludeFields,
		Tree:          r.Tree,
		Existing:      r.Existing,
		Debug:         r.Debug,
	}
}

func (s *Server) handleRemoteFolder(w http.ResponseWriter, r *http.Request) {
	token, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req remoteFolderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	res, err := s.ports.RemoteFolder.ServeRemoteFolder(r.Context(), token, req.toDomain())
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("remote folder %s:%d: %v", req.Account, req.Item, err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// sessionToken extracts "Authorization: Token <token>". The scheme is
// matched case-insensitively.
func sessionToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, TokenScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// errorStatus maps a service error onto a status and a message safe to
// hand to a peer.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusUnauthorized, msgForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(fields, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
