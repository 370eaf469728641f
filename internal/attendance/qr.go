package attendance

import (
	"context"
	"crypto/subtle"
	"errors"
)

// VerifyFunc: ローテーション/署名付きQRの検証を外部から注入するための型。
// リモート検証する場合は呼び出し側で ctx にタイムアウトを掛けること
type VerifyFunc func(ctx context.Context, code string, cand Candidate) (bool, error)

// QRAuthenticator は提示されたQRの真正性を確認する。
//   - Verify があればそれを使う（署名方式には関知しない）
//   - なければ Expected と完全一致比較
//   - どちらも未設定なら素通し。本番では必ずどちらかを設定すること
//     （StrictQR で未設定時に fail closed へ切り替えられる）
type QRAuthenticator struct {
	Expected string
	Verify   VerifyFunc
	Strict   bool
}

// Authenticate: 真偽のみ返す。失敗理由は呼び出し側で一律
// ReasonInvalidQR にする（wrong/expired を区別して漏らさない）。
// 戦略のタイムアウトは検証失敗（fail closed）、それ以外のI/O障害は
// インフラ障害としてエラーで返す
func (q QRAuthenticator) Authenticate(ctx context.Context, cand Candidate) (bool, error) {
	if q.Verify != nil {
		ok, err := q.Verify(ctx, cand.PresentedQR, cand)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return false, nil
			}
			return false, err
		}
		return ok, nil
	}
	if q.Expected != "" {
		return subtle.ConstantTimeCompare([]byte(cand.PresentedQR), []byte(q.Expected)) == 1, nil
	}
	if q.Strict {
		return false, nil
	}
	return true, nil
}
