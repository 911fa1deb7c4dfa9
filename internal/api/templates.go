package api

import (
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/repository"
)

const maxTemplateBodySize = 1 << 20

// readBodyFile pulls the template body out of the multipart "body" file
// field and checks it is valid UTF-8 text.
func readBodyFile(c *gin.Context) (string, error) {
	fileHeader, err := c.FormFile("body")
	if err != nil {
		return "", errs.Validation("body", "body file is required")
	}
	if fileHeader.Size > maxTemplateBodySize {
		return "", errs.Validation("body", "body file is too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", errs.Validation("body", "failed to open body file")
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(io.LimitReader(file, maxTemplateBodySize))
	if err != nil {
		return "", errs.Validation("body", "failed to read body file")
	}
	if !utf8.Valid(raw) {
		return "", errs.Validation("body", "body file must be UTF-8 text")
	}
	return string(raw), nil
}

// createTemplate handles the multipart create: name and subject as form
// fields, body as a text file upload.
func (h *Handlers) createTemplate(c *gin.Context) {
	name := c.PostForm("name")
	subject := c.PostForm("subject")
	body, err := readBodyFile(c)
	if err != nil {
		respondError(c, err)
		return
	}

	template, err := h.templates.Create(c.Request.Context(), repository.CreateTemplate{
		Name:    name,
		Subject: subject,
		Body:    body,
		StaffID: userIDFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *Handlers) getTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	template, err := h.templates.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *Handlers) listTemplates(c *gin.Context) {
	skip, limit := pagination(c)

	templates, err := h.templates.List(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handlers) updateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	var in repository.UpdateTemplate
	if name, ok := c.GetPostForm("name"); ok {
		in.Name = &name
	}
	if subject, ok := c.GetPostForm("subject"); ok {
		in.Subject = &subject
	}
	if _, err := c.FormFile("body"); err == nil {
		body, err := readBodyFile(c)
		if err != nil {
			respondError(c, err)
			return
		}
		in.Body = &body
	}

	template, err := h.templates.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *Handlers) deleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, errs.Validation("id", "id must be a UUID"))
		return
	}

	if err := h.templates.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
