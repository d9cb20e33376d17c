package logger

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cwClient *cloudwatch.Client
var cwNamespace = "Statflow"

// InitCloudWatch initialises the CloudWatch client using the provided region
// and namespace. If region is empty it falls back to the AWS_REGION
// environment variable. When the client cannot be created the function logs a
// warning and metrics publishing remains disabled.
func InitCloudWatch(region, namespace string) {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)
	if namespace != "" {
		cwNamespace = namespace
	}

	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")
}

// PublishCount sends a single counter datum to CloudWatch. It is a no-op
// until InitCloudWatch has succeeded, so callers never have to guard it.
func PublishCount(ctx context.Context, metric string, value float64, dimensions map[string]string) {
	if cwClient == nil {
		return
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for name, val := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(name), Value: aws.String(val)})
	}

	_, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(cwNamespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(metric),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(value),
			Dimensions: dims,
		}},
	})
	if err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Debug("failed to publish metric")
	}
}
