package http

import (
	"encoding/xml"
	"errors"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"net/http"
)

func writeError(w http.ResponseWriter, request *http.Request, err error) {
	switch {
	case errors.As(err, &domain.ContainerNotFoundError{}):
		writeErrorCode(w, request, http.StatusNotFound, "NoSuchBucket", err.Error())
	case errors.As(err, &domain.KeyNotFoundError{}):
		writeErrorCode(w, request, http.StatusNotFound, "NoSuchKey", err.Error())
	case errors.As(err, &domain.UploadNotFoundError{}):
		writeErrorCode(w, request, http.StatusNotFound, "NoSuchUpload", err.Error())
	case errors.As(err, &domain.InvalidPartError{}):
		writeErrorCode(w, request, http.StatusBadRequest, "InvalidPart", err.Error())
	case errors.As(err, &domain.ContainerNotEmptyError{}):
		writeErrorCode(w, request, http.StatusConflict, "BucketNotEmpty", err.Error())
	case errors.As(err, &domain.PreconditionFailedError{}):
		writeErrorCode(w, request, http.StatusPreconditionFailed, "PreconditionFailed", err.Error())
	default:
		logger.Errorf("Unexpected error handling %s %s: %v", request.Method, request.URL.Path, err)
		writeErrorCode(w, request, http.StatusInternalServerError, "InternalError", err.Error())
	}
}

func writeErrorCode(w http.ResponseWriter, request *http.Request, status int, code string, message string) {
	body := Error{
		Code:     code,
		Message:  message,
		Resource: request.URL.Path,
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)

	if request.Method == http.MethodHead {
		return
	}

	if err := xml.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Unable to encode error %s: %v", code, err)
	}
}
