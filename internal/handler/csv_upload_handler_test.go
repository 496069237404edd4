package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/handler"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/service"
)

func uploadRequest(t *testing.T, parts map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range parts {
		part, err := writer.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/csv/upload", body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func newUploadApp() *fiber.App {
	app := fiber.New()
	handler.NewCSVUploadHandler(service.NewCSVIntakeService(1, zerolog.Nop()), zerolog.Nop()).Register(app.Group("/csv"))
	return app
}

func TestCSVUploadHandler_ParsesUploadSet(t *testing.T) {
	app := newUploadApp()

	resp, err := app.Test(uploadRequest(t, map[string]string{
		service.PartQuestions: "Question,MaximumScore\nName a sorting algorithm,2\nExplain Big O,4\n",
		service.PartScheme:    "Rubric1,Rubric2\nwrong,vague\nright,precise\n",
		service.PartAnswers:   "StudentNumber,Question1Answer,Question2Answer\n1001,Quicksort,\"Growth\nrate\"\n1002,,\n",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope[dto.ParsedUpload](t, resp)
	require.True(t, payload.Success)
	require.Len(t, payload.Data.Questions, 2)
	require.Len(t, payload.Data.GradingRubrics, 2)
	require.Len(t, payload.Data.StudentAnswers, 2)
	require.Equal(t, "Growth\nrate", payload.Data.StudentAnswers[0].Answers[2])
	require.Equal(t, models.NoAnswerProvided, payload.Data.StudentAnswers[1].Answers[1])
}

func TestCSVUploadHandler_Errors(t *testing.T) {
	app := newUploadApp()

	resp, err := app.Test(uploadRequest(t, map[string]string{
		service.PartQuestions: "Question,MaximumScore\nfoo,2\n",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decodeEnvelope[any](t, resp).Message, service.PartAnswers)

	resp, err = app.Test(uploadRequest(t, map[string]string{
		service.PartQuestions: "Question,MaximumScore\n\"never closed,2\n",
		service.PartAnswers:   "StudentNumber,Question1\n1,a\n",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decodeEnvelope[any](t, resp).Message, "unterminated")

	req := httptest.NewRequest(http.MethodPost, "/csv/upload", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
