package lib

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
)

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestFetchSecret(t *testing.T) {
	f := &fakeSecrets{value: aws.String("k")}
	v, err := FetchSecret(context.Background(), f, "menusync/encryption-key")
	assert.NoError(t, err)
	assert.Equal(t, "k", v)
	assert.Equal(t, "menusync/encryption-key", f.asked)

	_, err = FetchSecret(context.Background(), &fakeSecrets{}, "x")
	assert.Error(t, err)

	_, err = FetchSecret(context.Background(), &fakeSecrets{err: errors.New("denied")}, "x")
	assert.EqualError(t, err, "denied")
}
