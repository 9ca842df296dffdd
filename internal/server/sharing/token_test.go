package sharing

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := IssueToken("user-123", "Best Friends", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, visibility.BestFriends, claims.Tier)
	assert.Equal(t, visibility.Category{Tier: visibility.BestFriends}, claims.Category())
}

func TestIssueToken_UnknownTier(t *testing.T) {
	t.Parallel()

	_, err := IssueToken("u1", "enemies", []byte("k"), time.Hour)
	assert.ErrorIs(t, err, common.ErrInvalidVisibility)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := IssueToken("u1", visibility.Public, secret, -1*time.Second)
	require.NoError(t, err)

	_, err = ParseToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestParseToken_Invalid(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u2", visibility.Public, []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = ParseToken("not.a.jwt", []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u3", Tier: visibility.Public})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(unsigned, []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
