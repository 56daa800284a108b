package ebd

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiveTags_SingleRow(t *testing.T) {
	tags, err := ParseLiveTags("header\n1;TempSensor;72;0;0;192\n")
	require.NoError(t, err)

	want := map[string]TagRecord{
		"TempSensor": {ID: "1", Name: "TempSensor", Value: "72", AlarmStatus: "0", AlarmType: "0", Quality: "192"},
	}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Fatalf("live tags mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLiveTags_QuotesAndCarriageReturns(t *testing.T) {
	body := "\"TagId\";\"TagName\";\"Value\";\"AlStatus\";\"AlType\";\"Quality\"\r\n" +
		"1;\"Pump\";1;0;0;65472\r\n" +
		"2;\"Level\";3.25;1;2;65472\r\n"

	tags, err := ParseLiveTags(body)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "1", tags["Pump"].Value)
	assert.Equal(t, "65472", tags["Pump"].Quality)
	assert.Equal(t, "3.25", tags["Level"].Value)
	assert.Equal(t, "2", tags["Level"].AlarmType)
}

func TestParseLiveTags_HeaderOnly(t *testing.T) {
	tags, err := ParseLiveTags("TagId;TagName;Value;AlStatus;AlType;Quality\n")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestParseLiveTags_NoTrailingNewline(t *testing.T) {
	tags, err := ParseLiveTags("header\n1;A;10;0;0;192")
	require.NoError(t, err)
	assert.Equal(t, "10", tags["A"].Value)
}

func TestParseLiveTags_DuplicateNameLastWins(t *testing.T) {
	tags, err := ParseLiveTags("header\n1;A;10;0;0;192\n2;A;20;0;0;192\n")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "2", tags["A"].ID)
	assert.Equal(t, "20", tags["A"].Value)
}

func TestParseLiveTags_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"too few fields": "header\n1;A;10;0;0;192\n2;B;20\n",
		"too many":       "header\n1;A;10;0;0;192;extra\n",
		"blank middle":   "header\n1;A;10;0;0;192\n\n2;B;20;0;0;192\n",
		"blank header":   "\n1;A;10;0;0;192\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			tags, err := ParseLiveTags(body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
			assert.Nil(t, tags, "no partial result on failure")
		})
	}
}

func TestParseHistorical_ColumnAlignment(t *testing.T) {
	body := "Time;Ident;Tag1;Tag2\n" +
		"01/02/2024 10:00:00;0;1.5;100\n" +
		"01/02/2024 10:01:00;0;1.6;200\n"

	series, err := ParseHistorical(body)
	require.NoError(t, err)

	want := HistoricalSeries{
		"Tag1": {
			{Timestamp: "01/02/2024 10:00:00", Value: "1.5"},
			{Timestamp: "01/02/2024 10:01:00", Value: "1.6"},
		},
		"Tag2": {
			{Timestamp: "01/02/2024 10:00:00", Value: "100"},
			{Timestamp: "01/02/2024 10:01:00", Value: "200"},
		},
	}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Fatalf("historical series mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHistorical_QuotedWithCR(t *testing.T) {
	body := "\"TimeStr\";\"IsInitValue\";\"Level\"\r\n" +
		"\"05/03/2024 08:00:00\";0;12\r\n"

	series, err := ParseHistorical(body)
	require.NoError(t, err)
	require.Len(t, series["Level"], 1)
	assert.Equal(t, "05/03/2024 08:00:00", series["Level"][0].Timestamp)
	assert.Equal(t, "12", series["Level"][0].Value)
}

func TestParseHistorical_HeaderOnly(t *testing.T) {
	series, err := ParseHistorical("Time;Ident;Tag1\n")
	require.NoError(t, err)
	require.Contains(t, series, "Tag1")
	assert.Empty(t, series["Tag1"])
}

func TestParseHistorical_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"short header":  "Time;Ident\n01/02/2024 10:00:00;0\n",
		"row too short": "Time;Ident;Tag1;Tag2\n01/02/2024 10:00:00;0;1\n",
		"row too long":  "Time;Ident;Tag1\n01/02/2024 10:00:00;0;1;2\n",
		"duplicate tag": "Time;Ident;T;T\n01/02/2024 10:00:00;0;1;2\n01/02/2024 10:01:00;0;3;4\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			series, err := ParseHistorical(body)
			require.ErrorIs(t, err, ErrParse)
			assert.Nil(t, series)
		})
	}
}

func TestSample_Time(t *testing.T) {
	ts, err := Sample{Timestamp: "01/02/2024 10:01:30"}.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 1, 10, 1, 30, 0, time.UTC), ts)

	_, err = Sample{Timestamp: "2024-02-01"}.Time()
	assert.ErrorIs(t, err, ErrParse)
}
