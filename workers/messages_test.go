package workers

import (
	"testing"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/stretchr/testify/assert"
)

func TestParseCommandLine(t *testing.T) {
	cmd, params := parseCommandLine("$hallpass alice")
	assert.Equal(t, "$hallpass", cmd)
	assert.Equal(t, []string{"alice"}, params)

	// 前导空行跳过
	cmd, params = parseCommandLine("\n\n  $ban alice 7  \nignored second line")
	assert.Equal(t, "$ban", cmd)
	assert.Equal(t, []string{"alice", "7"}, params)

	cmd, params = parseCommandLine("")
	assert.Empty(t, cmd)
	assert.Nil(t, params)
}

func TestIgnorableMessage(t *testing.T) {
	assert.True(t, ignorableMessage(&platform.Message{Author: "alice", WasComment: true}))
	assert.True(t, ignorableMessage(&platform.Message{Author: ""}))
	assert.True(t, ignorableMessage(&platform.Message{Author: "reddit", Subject: "username mention in testsub"}))
	assert.True(t, ignorableMessage(&platform.Message{Author: "reddit", Subject: "You've been added as a moderator added notice"}))
	assert.True(t, ignorableMessage(&platform.Message{Author: "reddit", Subject: "invitation to moderate /r/testsub"}))

	assert.False(t, ignorableMessage(&platform.Message{Author: "mod1", Subject: "testsub", Body: "$stats"}))
}
