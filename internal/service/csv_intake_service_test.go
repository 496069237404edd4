package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/models"
)

const (
	questionsCSV = "QuestionNumber,Question,MaximumScore\n1,Define a variable,2\n2,\"Explain loops,\nwith an example\",4\n"
	schemeCSV    = "Rubric1,Rubric2\nvague,no loop\nprecise,loop with example\n"
	answersCSV   = "StudentNumber,Question1Answer,Question2Answer\nS1,A named value,\"for i := range n {\n}\"\nS2,,while\n"
	rubricCSV    = "QuestionNumber,ExampleAnswer\n2,mentions iteration\n2,shows code\n2,explains termination\n"
)

func multipartFiles(t *testing.T, parts map[string][]byte) map[string]*multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range parts {
		part, err := writer.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(10<<20))

	files := make(map[string]*multipart.FileHeader)
	for name, headers := range req.MultipartForm.File {
		files[name] = headers[0]
	}
	return files
}

func TestMapUploadWithGradingScheme(t *testing.T) {
	parsed, err := MapUpload(UploadContents{Questions: questionsCSV, Scheme: schemeCSV, Answers: answersCSV})
	require.NoError(t, err)

	require.Len(t, parsed.Questions, 2)
	require.Equal(t, "Explain loops,\nwith an example", parsed.Questions[1].Text)
	require.Equal(t, PartScheme, parsed.RubricSource)
	require.Len(t, parsed.GradingRubrics, 2)
	require.Equal(t, "loop with example", parsed.GradingRubrics[1].Levels[1].ExampleAnswer)

	require.Len(t, parsed.StudentAnswers, 2)
	require.Equal(t, "for i := range n {\n}", parsed.StudentAnswers[0].Answer(2))
	require.Equal(t, models.NoAnswerProvided, parsed.StudentAnswers[1].Answer(1))
}

func TestMapUploadPrefersRubricFile(t *testing.T) {
	parsed, err := MapUpload(UploadContents{Questions: questionsCSV, Scheme: schemeCSV, Answers: answersCSV, RubricFile: rubricCSV})
	require.NoError(t, err)
	require.Equal(t, PartRubricFile, parsed.RubricSource)
	require.Len(t, parsed.GradingRubrics, 1)
	require.Equal(t, 2, parsed.GradingRubrics[0].QuestionNumber)
	require.Len(t, parsed.GradingRubrics[0].Levels, 3)
	require.Equal(t, 3, parsed.GradingRubrics[0].Levels[2].Score)
}

func TestMapUploadWithoutRubric(t *testing.T) {
	parsed, err := MapUpload(UploadContents{Questions: questionsCSV, Answers: answersCSV})
	require.NoError(t, err)
	require.Empty(t, parsed.GradingRubrics)
	require.Empty(t, parsed.RubricSource)
}

func TestMapUploadBlankRubricFileIsParseError(t *testing.T) {
	_, err := MapUpload(UploadContents{Questions: questionsCSV, Scheme: schemeCSV, Answers: answersCSV, RubricFile: "  \n", HasRubricFile: true})
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), PartRubricFile)
}

func TestCSVIntakeServiceRejectsBlankRubricFile(t *testing.T) {
	svc := NewCSVIntakeService(1, zerolog.Nop())

	_, err := svc.ParseAndMap(context.Background(), multipartFiles(t, map[string][]byte{
		PartQuestions:  []byte(questionsCSV),
		PartScheme:     []byte(schemeCSV),
		PartAnswers:    []byte(answersCSV),
		PartRubricFile: {},
	}))
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), PartRubricFile)
}

func TestMapUploadParseErrorsNamePart(t *testing.T) {
	_, err := MapUpload(UploadContents{Questions: "Question,MaximumScore\n\"open,2\n", Answers: answersCSV})
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), PartQuestions)

	_, err = MapUpload(UploadContents{Questions: questionsCSV, Answers: "StudentNumber\n"})
	require.ErrorIs(t, err, ErrParse)
	require.Contains(t, err.Error(), PartAnswers)
}

func TestCSVIntakeServiceParseAndMap(t *testing.T) {
	svc := NewCSVIntakeService(1, zerolog.Nop())

	files := multipartFiles(t, map[string][]byte{
		PartQuestions: []byte(questionsCSV),
		PartScheme:    []byte(schemeCSV),
		PartAnswers:   []byte(answersCSV),
	})
	parsed, err := svc.ParseAndMap(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, parsed.Questions, 2)
	require.Len(t, parsed.StudentAnswers, 2)
}

func TestCSVIntakeServiceRejectsInvalidUploads(t *testing.T) {
	svc := NewCSVIntakeService(1, zerolog.Nop())

	_, err := svc.ParseAndMap(context.Background(), multipartFiles(t, map[string][]byte{
		PartQuestions: []byte(questionsCSV),
	}))
	require.ErrorIs(t, err, ErrUploadMissingFile)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	_, err = svc.ParseAndMap(context.Background(), multipartFiles(t, map[string][]byte{
		PartQuestions: png,
		PartAnswers:   []byte(answersCSV),
	}))
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	large := bytes.Repeat([]byte("a,b\n"), (1<<20)/4+1)
	_, err = svc.ParseAndMap(context.Background(), multipartFiles(t, map[string][]byte{
		PartQuestions: large,
		PartAnswers:   []byte(answersCSV),
	}))
	require.ErrorIs(t, err, ErrUploadTooLarge)
}
