package usecase

import (
	"context"
	"testing"

	pkgkafka "ChurnScope/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaScoringHandler(t *testing.T) {
	cases := []struct {
		name      string
		payload   string
		permanent bool
		predicted int
		rejected  int
	}{
		{
			name:      "numbers",
			payload:   `{"id":"c-1","tenure":1,"monthly_charges":95.0,"contract":"Month-to-month","payment_method":"Electronic check"}`,
			predicted: 1,
		},
		{
			name:      "strings",
			payload:   `{"id":"c-2","tenure":"12","monthly_charges":"70.35","contract":"One year","payment_method":"Mailed check"}`,
			predicted: 1,
		},
		{
			name:      "negative tenure",
			payload:   `{"id":"c-3","tenure":-4,"monthly_charges":70,"contract":"One year","payment_method":"Mailed check"}`,
			permanent: true,
			rejected:  1,
		},
		{
			name:      "missing charges",
			payload:   `{"id":"c-4","tenure":4,"contract":"One year","payment_method":"Mailed check"}`,
			permanent: true,
			rejected:  1,
		},
		{
			name:      "not json",
			payload:   `tenure=4`,
			permanent: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := newTestService(t, newRecordingMetrics(), WithPublisher(pub))
			h := NewKafkaScoringHandler("churn.requests", s)
			assert.Equal(t, "churn.requests", h.Topic())

			err := h.Handle(context.Background(), []byte(tc.payload))
			if tc.permanent {
				require.Error(t, err)
				assert.True(t, pkgkafka.IsPermanent(err))
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, pub.predictions, tc.predicted)
			assert.Len(t, pub.rejections, tc.rejected)
		})
	}
}

func TestKafkaScoringHandlerRequestID(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestService(t, newRecordingMetrics(), WithPublisher(pub))
	h := NewKafkaScoringHandler("churn.requests", s)

	ctx := pkgkafka.ContextWithRequestID(context.Background(), "hdr-1")
	require.NoError(t, h.Handle(ctx, []byte(`{"tenure":3,"monthly_charges":20,"contract":"Two year","payment_method":"Credit card"}`)))
	require.NoError(t, h.Handle(ctx, []byte(`{"id":"body-2","tenure":3,"monthly_charges":20,"contract":"Two year","payment_method":"Credit card"}`)))

	require.Len(t, pub.predictions, 2)
	assert.Equal(t, "hdr-1", pub.predictions[0].RequestID)
	assert.Equal(t, "body-2", pub.predictions[1].RequestID)
	assert.Equal(t, SourceKafka, pub.predictions[0].Source)
}
