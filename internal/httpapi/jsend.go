package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// jsend-style response envelopes.

type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type failEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, successEnvelope{Status: "success", Data: data})
}

func fail(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, failEnvelope{Status: "fail", Message: message, Data: data})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, failEnvelope{Status: "error", Message: message})
}
