package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := map[error]int{
		Classify(ErrNotFound, errors.New("product missing")):  http.StatusNotFound,
		Classify(ErrDuplicate, errors.New("sku taken")):       http.StatusConflict,
		Classify(ErrValidation, errors.New("bad payload")):    http.StatusBadRequest,
		Classify(ErrUnprocessable, errors.New("stale id")):    http.StatusUnprocessableEntity,
		Classify(ErrUnavailable, errors.New("queue offline")): http.StatusServiceUnavailable,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		require.Equal(t, status, rec.Code, err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, status, problem.Status)
		if status == http.StatusInternalServerError {
			require.Empty(t, problem.Detail)
		} else {
			require.Equal(t, err.Error(), problem.Detail)
		}
	}
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := errors.New("cause")
	err := Classify(ErrNotFound, cause)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, cause)
	require.Nil(t, Classify(ErrNotFound, nil))
}

func TestReadBodyLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", MaxBodyBytes+1)))
	_, err := ReadBody(httptest.NewRecorder(), req)
	require.ErrorIs(t, err, ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	body, err := ReadBody(httptest.NewRecorder(), req)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(body))
}
