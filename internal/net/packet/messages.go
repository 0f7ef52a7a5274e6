package packet

// Builders for every server→client message the game emits. Each returns a
// ready payload: opcode byte first, fields after, in the order the client
// parses them.

func Logged() []byte {
	return NewWriterWithOpcode(S_OPCODE_LOGGED).Bytes()
}

func UserCharIndex(charIndex int32) []byte {
	w := NewWriterWithOpcode(S_OPCODE_USER_CHAR_INDEX)
	w.WriteH(uint16(charIndex))
	return w.Bytes()
}

func ChangeMap(mapID, musicID int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHANGE_MAP)
	w.WriteH(uint16(mapID))
	w.WriteC(byte(musicID))
	return w.Bytes()
}

func PosUpdate(x, y int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_POS_UPDATE)
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	return w.Bytes()
}

// Console font indexes.
const (
	FontInfo    = 0
	FontFight   = 1
	FontWarning = 3
	FontParty   = 5
	FontClan    = 6
	FontServer  = 7
)

func ConsoleMsg(text string, font byte) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CONSOLE_MSG)
	w.WriteU(text)
	w.WriteC(font)
	return w.Bytes()
}

func ErrorMsg(text string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_ERROR_MSG)
	w.WriteU(text)
	return w.Bytes()
}

func ChatOverHead(charIndex int32, text string, r, g, b byte) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHAT_OVER_HEAD)
	w.WriteU(text)
	w.WriteH(uint16(charIndex))
	w.WriteC(r)
	w.WriteC(g)
	w.WriteC(b)
	return w.Bytes()
}

func CharacterCreate(charIndex int32, body, head, heading, x, y int, name string, clanTag string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHARACTER_CREATE)
	w.WriteH(uint16(charIndex))
	w.WriteH(uint16(body))
	w.WriteH(uint16(head))
	w.WriteC(byte(heading))
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	w.WriteU(name)
	w.WriteU(clanTag)
	return w.Bytes()
}

func CharacterRemove(charIndex int32) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHARACTER_REMOVE)
	w.WriteH(uint16(charIndex))
	return w.Bytes()
}

func CharacterMove(charIndex int32, x, y int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHARACTER_MOVE)
	w.WriteH(uint16(charIndex))
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	return w.Bytes()
}

func CharacterChange(charIndex int32, body, head, heading int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHARACTER_CHANGE)
	w.WriteH(uint16(charIndex))
	w.WriteH(uint16(body))
	w.WriteH(uint16(head))
	w.WriteC(byte(heading))
	return w.Bytes()
}

func ObjectCreate(x, y, grhIndex int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_OBJECT_CREATE)
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	w.WriteH(uint16(grhIndex))
	return w.Bytes()
}

func ObjectDelete(x, y int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_OBJECT_DELETE)
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	return w.Bytes()
}

func BlockPosition(x, y int, blocked bool) []byte {
	w := NewWriterWithOpcode(S_OPCODE_BLOCK_POSITION)
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	if blocked {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	return w.Bytes()
}

func PlayWave(waveID, x, y int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_PLAY_WAVE)
	w.WriteC(byte(waveID))
	w.WriteC(byte(x))
	w.WriteC(byte(y))
	return w.Bytes()
}

func CreateFX(charIndex int32, fxIndex, loops int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CREATE_FX)
	w.WriteH(uint16(charIndex))
	w.WriteH(uint16(fxIndex))
	w.WriteH(uint16(loops))
	return w.Bytes()
}

func UpdateUserStats(maxHP, hp, maxMana, mana, maxSta, sta, gold, level int, exp int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_USER_STATS)
	w.WriteH(uint16(maxHP))
	w.WriteH(uint16(hp))
	w.WriteH(uint16(maxMana))
	w.WriteH(uint16(mana))
	w.WriteH(uint16(maxSta))
	w.WriteH(uint16(sta))
	w.WriteD(int32(gold))
	w.WriteC(byte(level))
	w.WriteD(int32(exp))
	return w.Bytes()
}

func UpdateHP(hp int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_HP)
	w.WriteH(uint16(hp))
	return w.Bytes()
}

func UpdateMana(mana int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_MANA)
	w.WriteH(uint16(mana))
	return w.Bytes()
}

func UpdateSta(sta int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_STA)
	w.WriteH(uint16(sta))
	return w.Bytes()
}

func UpdateGold(gold int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_GOLD)
	w.WriteD(int32(gold))
	return w.Bytes()
}

func UpdateBankGold(gold int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_BANK_GOLD)
	w.WriteD(int32(gold))
	return w.Bytes()
}

func UpdateExp(exp int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_EXP)
	w.WriteD(int32(exp))
	return w.Bytes()
}

func UpdateHunger(hunger, maxHunger, thirst, maxThirst int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_UPDATE_HUNGER)
	w.WriteC(byte(maxHunger / 10))
	w.WriteC(byte(hunger / 10))
	w.WriteC(byte(maxThirst / 10))
	w.WriteC(byte(thirst / 10))
	return w.Bytes()
}

func LevelUp(skillPoints int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_LEVEL_UP)
	w.WriteH(uint16(skillPoints))
	return w.Bytes()
}

func DiceRoll(strength, agility, intelligence, charisma, constitution int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_DICE_ROLL)
	w.WriteC(byte(strength))
	w.WriteC(byte(agility))
	w.WriteC(byte(intelligence))
	w.WriteC(byte(charisma))
	w.WriteC(byte(constitution))
	return w.Bytes()
}

func MeditateToggle() []byte {
	return NewWriterWithOpcode(S_OPCODE_MEDITATE_TOGGLE).Bytes()
}

func ParalyzeOK() []byte {
	return NewWriterWithOpcode(S_OPCODE_PARALYZE_OK).Bytes()
}

func ChangeInvSlot(slot int, itemID int, name string, quantity int, equipped bool, grhIndex, objType, value int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHANGE_INV_SLOT)
	w.WriteC(byte(slot))
	w.WriteH(uint16(itemID))
	w.WriteU(name)
	w.WriteH(uint16(quantity))
	if equipped {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	w.WriteH(uint16(grhIndex))
	w.WriteC(byte(objType))
	w.WriteD(int32(value))
	return w.Bytes()
}

func ChangeBankSlot(slot int, itemID int, name string, quantity int, grhIndex, value int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHANGE_BANK_SLOT)
	w.WriteC(byte(slot))
	w.WriteH(uint16(itemID))
	w.WriteU(name)
	w.WriteH(uint16(quantity))
	w.WriteH(uint16(grhIndex))
	w.WriteD(int32(value))
	return w.Bytes()
}

func ChangeSpellSlot(slot int, spellID int, name string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CHANGE_SPELL_SLOT)
	w.WriteC(byte(slot))
	w.WriteH(uint16(spellID))
	w.WriteU(name)
	return w.Bytes()
}

func CommerceInit(merchantName string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_COMMERCE_INIT)
	w.WriteU(merchantName)
	return w.Bytes()
}

func CommerceEnd() []byte {
	return NewWriterWithOpcode(S_OPCODE_COMMERCE_END).Bytes()
}

func BankInit(bankGold int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_BANK_INIT)
	w.WriteD(int32(bankGold))
	return w.Bytes()
}

func BankEnd() []byte {
	return NewWriterWithOpcode(S_OPCODE_BANK_END).Bytes()
}

func PartyChat(text string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_PARTY_CHAT)
	w.WriteU(text)
	return w.Bytes()
}

func ClanChat(text string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CLAN_CHAT)
	w.WriteU(text)
	return w.Bytes()
}

func ClanDetails(name string, leaderName string, members []string) []byte {
	w := NewWriterWithOpcode(S_OPCODE_CLAN_DETAILS)
	w.WriteU(name)
	w.WriteU(leaderName)
	w.WriteH(uint16(len(members)))
	for _, m := range members {
		w.WriteU(m)
	}
	return w.Bytes()
}

func ShowSignal(text string, grhIndex int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_SHOW_SIGNAL)
	w.WriteU(text)
	w.WriteH(uint16(grhIndex))
	return w.Bytes()
}

// Multi-message envelope: one opcode, sub-opcode selects the body.

func MultiNpcHitUser(bodyPart byte, damage int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_NPC_HIT_USER)
	w.WriteC(bodyPart)
	w.WriteH(uint16(damage))
	return w.Bytes()
}

func MultiUserHitNpc(damage int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_USER_HIT_NPC)
	w.WriteD(int32(damage))
	return w.Bytes()
}

func MultiUserSwing() []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_USER_SWING)
	return w.Bytes()
}

func MultiNpcSwing() []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_NPC_SWING)
	return w.Bytes()
}

func MultiNpcKillUser() []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_NPC_KILL_USER)
	return w.Bytes()
}

func MultiUserKillNpc(exp int) []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_USER_KILL_NPC)
	w.WriteD(int32(exp))
	return w.Bytes()
}

func MultiWorkRequestTarget(skill byte) []byte {
	w := NewWriterWithOpcode(S_OPCODE_MULTI_MESSAGE)
	w.WriteC(MM_WORK_REQUEST_TARGET)
	w.WriteC(skill)
	return w.Bytes()
}
