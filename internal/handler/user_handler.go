package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"chatwave/internal/app/storage"
	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/req"
	"chatwave/internal/pkg/resp"
)

// avatarDeleteTimeout bounds the background removal of a replaced avatar.
const avatarDeleteTimeout = 30 * time.Second

// HandleSearchUsers lists users whose name or e-mail contains ?search=, excluding the caller.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		users, err := deps.Users.SearchUsers(r.Context(), r.URL.Query().Get("search"), identity.ID)
		if err != nil {
			logx.Error(err, "user search failed")
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleUploadAvatar stores a multipart `file` as the caller's avatar and returns the updated user.
func HandleUploadAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		identity := jwt.GetPayloadFromContext(r)

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, storage.MaxAvatarSize+1))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFormParseFailed))
			return
		}

		mimeType, customErr := storage.ValidateAvatar(header.Filename, data)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		current, err := deps.Users.FindUserByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		key := storage.AvatarKey(identity.ID, header.Filename)
		url, err := deps.StorageService.Upload(r.Context(), key, mimeType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			logx.Error(err, "avatar upload failed", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		updated, err := deps.Users.UpdateUserPic(r.Context(), identity.ID, url)
		if err != nil {
			logx.Error(err, "failed to save avatar url", "user_id", identity.ID)
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		if oldKey, ok := storage.KeyFromURL(deps.Config.S3PublicBaseURL, current.Pic); ok {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), avatarDeleteTimeout)
				defer cancel()

				if err := deps.StorageService.Delete(ctx, oldKey); err != nil {
					logx.Warn("failed to delete replaced avatar", "key", oldKey, "error", err.Error())
				}
			}()
		}

		logx.Info("avatar updated", "user_id", identity.ID, "size", len(data), "mime_type", mimeType)
		resp.RespondSuccess(w, r, updated)
	}
}
