package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phillip/event-finder-go/logger"
	"github.com/phillip/event-finder-go/middleware"
	"github.com/phillip/event-finder-go/services"
	"github.com/phillip/event-finder-go/utils"
)

// DocumentStore keeps verification documents outside the database.
type DocumentStore interface {
	UploadVerificationDocument(ctx context.Context, owner string, file io.Reader) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

// ---------------- VERIFY ----------------
func SubmitVerification(users *services.UserService, docs DocumentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := middleware.CallerID(c)
		if err := services.RequireAuthenticated(caller); err != nil {
			respondError(c, err)
			return
		}

		in := services.VerificationInput{
			FullName:     c.PostForm("fullName"),
			FatherName:   c.PostForm("fatherName"),
			MobileNumber: c.PostForm("mobileNumber"),
			FullAddress:  c.PostForm("fullAddress"),
		}
		if err := services.ValidateVerification(in); err != nil {
			respondError(c, err)
			return
		}

		fileHeader, err := c.FormFile("document")
		if err != nil {
			badRequest(c, "Missing mandatory fields or document.")
			return
		}
		if err := utils.CheckDocument(fileHeader); err != nil {
			badRequest(c, "Invalid document: "+err.Error()+".")
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read document."})
			return
		}
		defer file.Close()

		log := logger.FromGin(c)
		documentURL, err := docs.UploadVerificationDocument(c.Request.Context(), caller.Hex(), file)
		if err != nil {
			log.Error("document upload failed", zap.Error(err), zap.String("file", fileHeader.Filename))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process verification submission."})
			return
		}
		in.DocumentURL = documentURL

		submission, err := users.SubmitVerification(c.Request.Context(), caller, in)
		if err != nil {
			// The upload is orphaned unless removed here.
			if derr := docs.Delete(context.WithoutCancel(c.Request.Context()), documentURL); derr != nil {
				log.Warn("orphaned verification document", zap.String("url", documentURL), zap.Error(derr))
			}
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":    "Verification details and document submitted successfully. Review pending.",
			"submission": submission,
		})
	}
}

// ---------------- REBUILD INDEX ----------------
func RebuildCreatedEvents(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.RebuildCreatedEvents(c.Request.Context(), middleware.CallerID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
