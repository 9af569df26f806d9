package scoring

import (
	"context"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"DDoSDefender/internal/model"
)

func withVersion(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, versionMDKey, strconv.Itoa(model.FeatureVectorVersion))
}

// checkVersion rejects callers that send a different vector layout. Callers
// that send no version are assumed to use the current one.
func checkVersion(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	got := md.Get(versionMDKey)
	if len(got) == 0 {
		return nil
	}
	if got[0] != strconv.Itoa(model.FeatureVectorVersion) {
		return status.Errorf(codes.FailedPrecondition, "feature vector version %s is not supported, want %d", got[0], model.FeatureVectorVersion)
	}
	return nil
}
