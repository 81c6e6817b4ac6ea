package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueUnmarshalKinds(t *testing.T) {
	var doc struct {
		A Value `yaml:"a"`
		B Value `yaml:"b"`
		C Value `yaml:"c"`
		D Value `yaml:"d"`
	}
	input := `
a: 65535
b: 256mb
c:
  scheduler: mq-deadline
  rotational: "0"
d: "0755"
`
	require.NoError(t, yaml.Unmarshal([]byte(input), &doc))

	assert.Equal(t, KindInt, doc.A.Kind())
	assert.Equal(t, "65535", doc.A.String())
	assert.Equal(t, KindString, doc.B.Kind())
	assert.Equal(t, KindRecord, doc.C.Kind())
	assert.Equal(t, "mq-deadline", doc.C.Fields()["scheduler"])
	// Quoted octal strings keep their literal spelling.
	assert.Equal(t, "0755", doc.D.String())
}

func TestValueEqualNumericNormalization(t *testing.T) {
	assert.True(t, IntValue(65535).Equal(StringValue("65535")))
	assert.True(t, StringValue("65535").Equal(IntValue(65535)))
	assert.False(t, IntValue(65535).Equal(StringValue("65536")))
}

func TestValueEqualByteSizeNormalization(t *testing.T) {
	// redis-style size spellings against raw byte counts.
	assert.True(t, StringValue("256mb").Equal(IntValue(256000000)))
	assert.True(t, StringValue("256mib").Equal(IntValue(268435456)))
	assert.True(t, StringValue("1gb").Equal(StringValue("1000mb")))
	assert.False(t, StringValue("256mb").Equal(IntValue(268435456)))
}

func TestValueEqualStrings(t *testing.T) {
	assert.True(t, StringValue("performance").Equal(StringValue("performance")))
	assert.False(t, StringValue("performance").Equal(StringValue("powersave")))
}

func TestValueEqualRecords(t *testing.T) {
	a := RecordValue(map[string]string{"scheduler": "none", "nr_requests": "256"})
	b := RecordValue(map[string]string{"nr_requests": "256", "scheduler": "none"})
	c := RecordValue(map[string]string{"scheduler": "mq-deadline", "nr_requests": "256"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(StringValue("none")))
}

func TestValueStringRecordDeterministic(t *testing.T) {
	v := RecordValue(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "a=1 b=2", v.String())
}

func TestValueMarshalRoundTrip(t *testing.T) {
	type doc struct {
		V Value `yaml:"v"`
	}
	out, err := yaml.Marshal(doc{V: IntValue(4096)})
	require.NoError(t, err)

	var back doc
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.True(t, back.V.Equal(IntValue(4096)))
}
