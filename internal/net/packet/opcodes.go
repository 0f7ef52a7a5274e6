package packet

// Client → server opcodes. One opcode per command type; unknown opcodes
// disconnect the client.
const (
	C_OPCODE_LOGIN           byte = 0
	C_OPCODE_THROW_DICES     byte = 1
	C_OPCODE_LOGIN_NEW_CHAR  byte = 2
	C_OPCODE_TALK            byte = 3
	C_OPCODE_YELL            byte = 4
	C_OPCODE_WHISPER         byte = 5
	C_OPCODE_WALK            byte = 6
	C_OPCODE_REQUEST_POS     byte = 7
	C_OPCODE_ATTACK          byte = 8
	C_OPCODE_PICKUP          byte = 9
	C_OPCODE_COMMERCE_END    byte = 17
	C_OPCODE_BANK_END        byte = 21
	C_OPCODE_DROP            byte = 24
	C_OPCODE_CAST_SPELL      byte = 25
	C_OPCODE_LEFT_CLICK      byte = 26
	C_OPCODE_DOUBLE_CLICK    byte = 27
	C_OPCODE_USE_ITEM        byte = 30
	C_OPCODE_EQUIP_ITEM      byte = 36
	C_OPCODE_CHANGE_HEADING  byte = 37
	C_OPCODE_COMMERCE_BUY    byte = 40
	C_OPCODE_BANK_EXTRACT    byte = 41
	C_OPCODE_COMMERCE_SELL   byte = 42
	C_OPCODE_BANK_DEPOSIT    byte = 43
	C_OPCODE_DOOR            byte = 58
	C_OPCODE_MEDITATE        byte = 70
	C_OPCODE_PARTY_CREATE    byte = 80
	C_OPCODE_PARTY_INVITE    byte = 81
	C_OPCODE_PARTY_ACCEPT    byte = 82
	C_OPCODE_PARTY_LEAVE     byte = 83
	C_OPCODE_PARTY_KICK      byte = 84
	C_OPCODE_PARTY_MESSAGE   byte = 85
	C_OPCODE_CLAN_FOUND      byte = 90
	C_OPCODE_CLAN_INVITE     byte = 91
	C_OPCODE_CLAN_ACCEPT     byte = 92
	C_OPCODE_CLAN_LEAVE      byte = 93
	C_OPCODE_CLAN_KICK       byte = 94
	C_OPCODE_CLAN_MESSAGE    byte = 95
	C_OPCODE_ONLINE          byte = 100
	C_OPCODE_QUIT            byte = 101
)

// Server → client opcodes. CONSOLE_MSG and ERROR_MSG numbers are fixed by
// the deployed clients; the rest follow the same catalog.
const (
	S_OPCODE_LOGGED             byte = 0
	S_OPCODE_REMOVE_DIALOGS     byte = 1
	S_OPCODE_DISCONNECT         byte = 4
	S_OPCODE_COMMERCE_END       byte = 5
	S_OPCODE_BANK_END           byte = 6
	S_OPCODE_COMMERCE_INIT      byte = 7
	S_OPCODE_BANK_INIT          byte = 8
	S_OPCODE_UPDATE_STA         byte = 15
	S_OPCODE_UPDATE_MANA        byte = 16
	S_OPCODE_UPDATE_HP          byte = 17
	S_OPCODE_UPDATE_GOLD        byte = 18
	S_OPCODE_UPDATE_BANK_GOLD   byte = 19
	S_OPCODE_UPDATE_EXP         byte = 20
	S_OPCODE_CHANGE_MAP         byte = 21
	S_OPCODE_POS_UPDATE         byte = 22
	S_OPCODE_CHAT_OVER_HEAD     byte = 23
	S_OPCODE_CONSOLE_MSG        byte = 24
	S_OPCODE_CLAN_CHAT          byte = 25
	S_OPCODE_USER_CHAR_INDEX    byte = 28
	S_OPCODE_CHARACTER_CREATE   byte = 29
	S_OPCODE_CHARACTER_REMOVE   byte = 30
	S_OPCODE_CHARACTER_MOVE     byte = 32
	S_OPCODE_CHARACTER_CHANGE   byte = 34
	S_OPCODE_OBJECT_CREATE      byte = 35
	S_OPCODE_OBJECT_DELETE      byte = 36
	S_OPCODE_BLOCK_POSITION     byte = 37
	S_OPCODE_PLAY_WAVE          byte = 39
	S_OPCODE_CREATE_FX          byte = 44
	S_OPCODE_UPDATE_USER_STATS  byte = 45
	S_OPCODE_CHANGE_INV_SLOT    byte = 47
	S_OPCODE_CHANGE_BANK_SLOT   byte = 48
	S_OPCODE_CHANGE_SPELL_SLOT  byte = 49
	S_OPCODE_ERROR_MSG          byte = 55
	S_OPCODE_SHOW_SIGNAL        byte = 58
	S_OPCODE_UPDATE_HUNGER      byte = 60
	S_OPCODE_LEVEL_UP           byte = 63
	S_OPCODE_DICE_ROLL          byte = 67
	S_OPCODE_MEDITATE_TOGGLE    byte = 68
	S_OPCODE_CLAN_DETAILS       byte = 80
	S_OPCODE_PARALYZE_OK        byte = 82
	S_OPCODE_PARTY_CHAT         byte = 96
	S_OPCODE_MULTI_MESSAGE      byte = 104
)

// MULTI_MESSAGE sub-opcodes. A family of short notifications multiplexed
// behind S_OPCODE_MULTI_MESSAGE, indexed by a one-byte sub-opcode.
const (
	MM_NPC_SWING           byte = 1
	MM_NPC_KILL_USER       byte = 2
	MM_USER_SWING          byte = 4
	MM_SAFE_MODE_ON        byte = 5
	MM_SAFE_MODE_OFF       byte = 6
	MM_NPC_HIT_USER        byte = 12
	MM_USER_HIT_NPC        byte = 13
	MM_USER_HITTED_BY_USER byte = 14
	MM_USER_HITTED_USER    byte = 15
	MM_WORK_REQUEST_TARGET byte = 17
	MM_USER_KILL_NPC       byte = 18
)
