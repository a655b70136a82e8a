package assembler

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// testPool numbers constants in first-use order starting at 1, like a class file pool.
type testPool struct {
	entries map[string]uint16
	next    uint16
}

func newTestPool() *testPool {
	return &testPool{entries: map[string]uint16{}, next: 1}
}

func (pool *testPool) intern(key string) (uint16, error) {
	if index, ok := pool.entries[key]; ok {
		return index, nil
	}
	index := pool.next
	pool.entries[key] = index
	pool.next++
	return index, nil
}

func (pool *testPool) Integer(value int32) (uint16, error) {
	return pool.intern(fmt.Sprintf("I:%d", value))
}

func (pool *testPool) String(value string) (uint16, error) {
	return pool.intern("S:" + value)
}

func (pool *testPool) Class(name string) (uint16, error) {
	return pool.intern("C:" + name)
}

func (pool *testPool) Fieldref(owner, name, descriptor string) (uint16, error) {
	return pool.intern("F:" + owner + "." + name + ":" + descriptor)
}

func (pool *testPool) Methodref(owner, name, descriptor string) (uint16, error) {
	return pool.intern("M:" + owner + "." + name + ":" + descriptor)
}

func TestPushIntEncoding(t *testing.T) {
	testData := []struct {
		value int32
		code  []byte
	}{
		{-1, []byte{0x02}},
		{0, []byte{0x03}},
		{5, []byte{0x08}},
		{6, []byte{0x10, 0x06}},
		{-128, []byte{0x10, 0x80}},
		{127, []byte{0x10, 0x7f}},
		{128, []byte{0x11, 0x00, 0x80}},
		{-32768, []byte{0x11, 0x80, 0x00}},
		{32768, []byte{0x12, 0x01}},
	}
	for _, data := range testData {
		code := NewCode()
		code.PushInt(data.value)
		code.Emit(Pop)
		code.Emit(Return)
		method, err := Assemble(code, newTestPool(), 0)
		require.NoError(t, err, data.value)
		expected := append(append([]byte{}, data.code...), byte(Pop), byte(Return))
		assert.Equal(t, expected, method.Bytecode, data.value)
		assert.Equal(t, 1, method.MaxStack)
	}
}

func TestLocalEncoding(t *testing.T) {
	code := NewCode()
	code.PushInt(1)
	code.Local(Istore, 0)
	code.PushString("s")
	code.Local(Astore, 3)
	code.Local(Iload, 4)
	code.Local(Istore, 300)
	code.Emit(Return)
	method, err := Assemble(code, newTestPool(), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x04,             // iconst_1
		0x3b,             // istore_0
		0x12, 0x01,       // ldc #1
		0x4e,             // astore_3
		0x15, 0x04,       // iload 4
		0xc4, 0x36, 0x01, 0x2c, // wide istore 300
		0xb1,
	}, method.Bytecode)
	assert.Equal(t, 301, method.MaxLocals)
}

func TestForwardLabelIsPatched(t *testing.T) {
	// The comparison-as-value shape: a b if_icmpgt T; 0; goto E; T: 1; E: pop; return
	code := NewCode()
	trueLabel, endLabel := code.NewLabel(), code.NewLabel()
	code.PushInt(5)
	code.PushInt(3)
	code.Jump(IfIcmpgt, trueLabel)
	code.PushInt(0)
	code.Jump(Goto, endLabel)
	require.NoError(t, code.Place(trueLabel))
	code.PushInt(1)
	require.NoError(t, code.Place(endLabel))
	code.Emit(Pop)
	code.Emit(Return)
	method, err := Assemble(code, newTestPool(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x08,             // 0: iconst_5
		0x06,             // 1: iconst_3
		0xa3, 0x00, 0x07, // 2: if_icmpgt +7 -> 9
		0x03,             // 5: iconst_0
		0xa7, 0x00, 0x04, // 6: goto +4 -> 10
		0x04,             // 9: iconst_1
		0x57,             // 10: pop
		0xb1,             // 11: return
	}, method.Bytecode)
	assert.Equal(t, 2, method.MaxStack)
	assert.True(t, code.Sealed())
}

func TestUnplacedLabelIsRejected(t *testing.T) {
	code := NewCode()
	label := code.NewLabel()
	code.PushInt(1)
	code.PushInt(2)
	code.Jump(IfIcmpeq, label)
	code.Emit(Return)
	_, err := Assemble(code, newTestPool(), 0)
	assert.NotNil(t, err)
	assert.False(t, code.Sealed())
}

func TestLabelPlacedTwice(t *testing.T) {
	code := NewCode()
	label := code.NewLabel()
	assert.Nil(t, code.Place(label))
	assert.NotNil(t, code.Place(label))
}

func TestForeignLabel(t *testing.T) {
	code, other := NewCode(), NewCode()
	label := other.NewLabel()
	assert.NotNil(t, code.Place(label))
}

func TestStackDiscipline(t *testing.T) {
	underflow := NewCode()
	underflow.Emit(Iadd)
	underflow.Emit(Return)
	_, err := Assemble(underflow, newTestPool(), 0)
	assert.NotNil(t, err)

	// One path pushes a value the other does not.
	code := NewCode()
	join := code.NewLabel()
	code.PushInt(1)
	code.PushInt(2)
	code.Jump(IfIcmplt, join)
	code.PushInt(7)
	assert.Nil(t, code.Place(join))
	code.Emit(Return)
	_, err = Assemble(code, newTestPool(), 0)
	assert.NotNil(t, err)

	fallOff := NewCode()
	fallOff.PushInt(1)
	_, err = Assemble(fallOff, newTestPool(), 0)
	assert.NotNil(t, err)

	_, err = Assemble(NewCode(), newTestPool(), 0)
	assert.NotNil(t, err)
}

func TestInvokeStackEffect(t *testing.T) {
	code := NewCode()
	code.Field(Getstatic, "java/lang/System", "out", "Ljava/io/PrintStream;")
	code.PushInt(42)
	code.Invoke(Invokevirtual, "java/io/PrintStream", "println", "(I)V")
	code.Type(New, "java/util/Scanner")
	code.Emit(Dup)
	code.Field(Getstatic, "java/lang/System", "in", "Ljava/io/InputStream;")
	code.Invoke(Invokespecial, "java/util/Scanner", "<init>", "(Ljava/io/InputStream;)V")
	code.Local(Astore, 1)
	code.Local(Aload, 1)
	code.Invoke(Invokevirtual, "java/util/Scanner", "nextInt", "()I")
	code.Local(Istore, 0)
	code.Emit(Return)
	pool := newTestPool()
	method, err := Assemble(code, pool, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, method.MaxStack)
	assert.Equal(t, 2, method.MaxLocals)
	assert.Equal(t, uint16(1), pool.entries["F:java/lang/System.out:Ljava/io/PrintStream;"])
	assert.Equal(t, uint16(2), pool.entries["M:java/io/PrintStream.println:(I)V"])
}

func TestAssembleTwice(t *testing.T) {
	code := NewCode()
	code.Emit(Return)
	_, err := Assemble(code, newTestPool(), 0)
	require.NoError(t, err)
	_, err = Assemble(code, newTestPool(), 0)
	assert.NotNil(t, err)
	assert.Panics(t, func() { code.Emit(Return) })
}

func TestDescriptorSlots(t *testing.T) {
	testData := []struct {
		descriptor string
		args, ret  int
		expectErr  bool
	}{
		{"()V", 0, 0, false},
		{"(I)V", 1, 0, false},
		{"(Ljava/lang/String;)V", 1, 0, false},
		{"([Ljava/lang/String;)V", 1, 0, false},
		{"(JD)I", 4, 1, false},
		{"()Ljava/lang/String;", 0, 1, false},
		{"()J", 0, 2, false},
		{"I", 0, 0, true},
		{"(Ljava/lang/String)V", 0, 0, true},
		{"(I", 0, 0, true},
		{"(Q)V", 0, 0, true},
	}
	for _, data := range testData {
		args, ret, err := DescriptorSlots(data.descriptor)
		if data.expectErr {
			assert.NotNil(t, err, data.descriptor)
			continue
		}
		assert.Nil(t, err, data.descriptor)
		assert.Equal(t, data.args, args, data.descriptor)
		assert.Equal(t, data.ret, ret, data.descriptor)
	}
}

func TestExpandShortForm(t *testing.T) {
	op, slot, ok := ExpandShortForm(Aload2)
	assert.True(t, ok)
	assert.Equal(t, Aload, op)
	assert.Equal(t, 2, slot)
	op, slot, ok = ExpandShortForm(Istore3)
	assert.True(t, ok)
	assert.Equal(t, Istore, op)
	assert.Equal(t, 3, slot)
	_, _, ok = ExpandShortForm(Iadd)
	assert.False(t, ok)
}

func TestListing(t *testing.T) {
	code := NewCode()
	end := code.NewLabel()
	code.PushInt(4)
	code.PushInt(4)
	code.Jump(IfIcmpeq, end)
	assert.Nil(t, code.Place(end))
	code.Emit(Return)
	assert.Equal(t, []string{
		"\tpush 4",
		"\tpush 4",
		"\tif_icmpeq L0",
		"L0:",
		"\treturn",
	}, code.Listing())
}
