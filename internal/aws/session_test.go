package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSTS struct {
	account string
	err     error
}

func (m *mockSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(m.account)}, nil
}

func TestVerifyIdentity(t *testing.T) {
	client := &Client{STS: &mockSTS{account: "123456789012"}}

	account, err := client.VerifyIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "123456789012", account)
}

func TestVerifyIdentityWrapsError(t *testing.T) {
	sentinel := errors.New("expired token")
	client := &Client{STS: &mockSTS{err: sentinel}}

	_, err := client.VerifyIdentity(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel, "identity errors must stay unwrappable")
}
