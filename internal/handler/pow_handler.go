package handler

import (
	"errors"
	"net/http"

	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/pow"
	"chatwave/internal/pkg/req"
	"chatwave/internal/pkg/resp"
)

type ChallengeResponse struct {
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
}

// HandleGetChallenge issues a proof-of-work nonce.
func HandleGetChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nonce, err := deps.Pow.GenerateNonce()
		if err != nil {
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		resp.RespondSuccess(w, r, ChallengeResponse{Nonce: nonce, Difficulty: deps.Pow.Difficulty()})
	}
}

type VerifyChallengeInput struct {
	Nonce   string `json:"nonce" validate:"required"`
	Counter string `json:"counter" validate:"required"`
}

// HandleVerifyChallenge exchanges a solved challenge for a single-use proof token.
func HandleVerifyChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input VerifyChallengeInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, err := deps.Pow.ValidateProof(input.Nonce, input.Counter)
		if err != nil {
			if errors.Is(err, pow.ErrNonceInvalid) || errors.Is(err, pow.ErrProofTooWeak) || errors.Is(err, pow.ErrNonceConsumed) {
				logx.Warn("proof of work rejected", "reason", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
				return
			}
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"token": token})
	}
}
